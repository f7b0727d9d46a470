// Package routes mounts the HTTP API on a gin engine.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicsync-be/controllers"
	"civicsync-be/middlewares"
)

type Handlers struct {
	Auth         *controllers.AuthController
	Issues       *controllers.IssueController
	Users        *controllers.UserController
	Gamification *controllers.GamificationController
	Profile      *controllers.ProfileController
}

// Register mounts every route group plus the health check.
func Register(r *gin.Engine, h Handlers, auth *middlewares.Authenticator, createLimit gin.HandlerFunc) {
	if createLimit == nil {
		createLimit = func(c *gin.Context) { c.Next() }
	}
	AuthRoutes(r, h.Auth, auth)
	IssueRoutes(r, h.Issues, auth, createLimit)
	AdminRoutes(r, h.Users, auth)
	GamificationRoutes(r, h.Gamification, auth)
	ProfileRoutes(r, h.Profile, auth)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}
