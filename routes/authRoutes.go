package routes

import (
	"github.com/gin-gonic/gin"

	"civicsync-be/controllers"
	"civicsync-be/middlewares"
)

// AuthRoutes sets up the authentication and inbox routes
func AuthRoutes(r *gin.Engine, h *controllers.AuthController, auth *middlewares.Authenticator) {
	group := r.Group("/api/auth")
	{
		group.POST("/register", h.RegisterUser)
		group.POST("/login", h.LoginUser)
		group.GET("/me", auth.AuthMiddleware(), h.GetMe)
		group.POST("/logout", h.LogoutUser)
	}

	inbox := r.Group("/api/notifications", auth.AuthMiddleware())
	{
		inbox.GET("", h.GetNotifications)
		inbox.PUT("/:id/read", h.MarkNotificationRead)
	}
}
