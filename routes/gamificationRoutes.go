package routes

import (
	"github.com/gin-gonic/gin"

	"civicsync-be/controllers"
	"civicsync-be/middlewares"
)

func GamificationRoutes(r *gin.Engine, h *controllers.GamificationController, auth *middlewares.Authenticator) {
	game := r.Group("/api/gamification")
	{
		game.GET("/community-dashboard", h.GetCommunityDashboard)
		game.GET("/neighborhood-stats", h.GetNeighborhoodStats)
		game.GET("/personal-contributions", auth.AuthMiddleware(), h.GetPersonalContributions)
		game.POST("/claim-reward", auth.AuthMiddleware(), h.ClaimReward)
	}
}
