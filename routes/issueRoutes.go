package routes

import (
	"github.com/gin-gonic/gin"

	"civicsync-be/controllers"
	"civicsync-be/middlewares"
	"civicsync-be/models"
)

// IssueRoutes sets up the issue routes. createLimit guards issue creation.
func IssueRoutes(r *gin.Engine, h *controllers.IssueController, auth *middlewares.Authenticator, createLimit gin.HandlerFunc) {
	staff := middlewares.RequireRole(models.RoleOfficer, models.RoleAdmin)

	issue := r.Group("/api/issues")
	{
		issue.GET("", auth.OptionalAuth(), h.GetAllIssues)
		issue.GET("/analytics/stats", auth.AuthMiddleware(), staff, h.GetAnalytics)
		issue.GET("/:id", auth.OptionalAuth(), h.GetIssue)
		issue.POST("", auth.AuthMiddleware(), createLimit, h.CreateIssue)
		issue.PUT("/:id/upvote", auth.AuthMiddleware(), h.UpvoteIssue)
		issue.POST("/:id/comments", auth.AuthMiddleware(), h.AddComment)
		issue.PUT("/:id/assign", auth.AuthMiddleware(), staff, h.AssignIssue)
		issue.PUT("/:id/status", auth.AuthMiddleware(), staff, h.UpdateIssueStatus)
	}
}
