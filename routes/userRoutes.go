package routes

import (
	"github.com/gin-gonic/gin"

	"civicsync-be/controllers"
	"civicsync-be/middlewares"
	"civicsync-be/models"
)

// AdminRoutes sets up the user management routes, all of them admin only.
func AdminRoutes(r *gin.Engine, h *controllers.UserController, auth *middlewares.Authenticator) {
	admin := r.Group("/api/admin", auth.AuthMiddleware(), middlewares.RequireRole(models.RoleAdmin))
	{
		admin.GET("/pending-users", h.GetPendingUsers)
		admin.GET("/users", h.GetAllUsers)
		admin.PUT("/approve-user/:id", h.ApproveUser)
		admin.PUT("/reject-user/:id", h.RejectUser)
		admin.POST("/create-officer", h.CreateOfficer)
		admin.POST("/create-admin", h.CreateAdmin)
		admin.PUT("/update-user/:id", h.UpdateUser)
		admin.DELETE("/delete-user/:id", h.DeleteUser)
		admin.GET("/stats", h.GetAdminStats)
	}
}
