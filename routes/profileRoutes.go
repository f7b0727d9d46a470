package routes

import (
	"github.com/gin-gonic/gin"

	"civicsync-be/controllers"
	"civicsync-be/middlewares"
	"civicsync-be/models"
)

// ProfileRoutes sets up the profile change request routes
func ProfileRoutes(r *gin.Engine, h *controllers.ProfileController, auth *middlewares.Authenticator) {
	self := r.Group("/api/auth", auth.AuthMiddleware())
	{
		self.POST("/request-profile-update", h.RequestProfileUpdate)
		self.GET("/profile-update-status", h.GetProfileUpdateStatus)
		self.PUT("/profile", h.UpdateProfile)
	}

	admin := r.Group("/api/admin", auth.AuthMiddleware(), middlewares.RequireRole(models.RoleAdmin))
	{
		admin.GET("/profile-update-requests", h.GetProfileUpdateRequests)
		admin.PUT("/approve-profile-update/:id", h.ApproveProfileUpdate)
		admin.PUT("/reject-profile-update/:id", h.RejectProfileUpdate)
	}
}
