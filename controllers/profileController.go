package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicsync-be/middlewares"
	"civicsync-be/models"
	"civicsync-be/services"
)

// ProfileController serves profile change requests and their admin review.
type ProfileController struct {
	profiles *services.ProfileService
	logger   *slog.Logger
}

func NewProfileController(profiles *services.ProfileService, logger *slog.Logger) *ProfileController {
	return &ProfileController{profiles: profiles, logger: logger}
}

func (h *ProfileController) RequestProfileUpdate(c *gin.Context) {
	var input struct {
		Phone   string `json:"phone" binding:"max=20"`
		Address string `json:"address" binding:"max=200"`
		Pincode string `json:"pincode"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.profiles.RequestUpdate(ctx, middlewares.CurrentUser(c), models.ProfileChanges{
		Phone:   input.Phone,
		Address: input.Address,
		Pincode: input.Pincode,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Profile update request submitted successfully", "requestId": r.ID})
}

func (h *ProfileController) GetProfileUpdateStatus(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.profiles.PendingRequest(ctx, middlewares.CurrentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	if r == nil {
		c.JSON(http.StatusOK, gin.H{"hasPendingRequest": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"hasPendingRequest": true,
		"pendingChanges":    r.RequestedChanges,
		"submittedAt":       r.CreatedAt,
	})
}

// UpdateProfile edits the caller's own name and phone. Only admins may.
func (h *ProfileController) UpdateProfile(c *gin.Context) {
	var input struct {
		Name  *string `json:"name" binding:"omitempty,max=50"`
		Phone *string `json:"phone" binding:"omitempty,max=20"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.profiles.UpdateOwnProfile(ctx, middlewares.CurrentUser(c), input.Name, input.Phone)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": userResponse(u)})
}

func (h *ProfileController) GetProfileUpdateRequests(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	requests, err := h.profiles.ListPending(ctx, middlewares.CurrentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(requests), "requests": requests})
}

func (h *ProfileController) ApproveProfileUpdate(c *gin.Context) {
	id, ok := pathID(c, "request")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.profiles.Approve(ctx, middlewares.CurrentUser(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile update approved successfully", "request": r})
}

func (h *ProfileController) RejectProfileUpdate(c *gin.Context) {
	id, ok := pathID(c, "request")
	if !ok {
		return
	}
	var input struct {
		Reason string `json:"reason" binding:"max=500"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.profiles.Reject(ctx, middlewares.CurrentUser(c), id, input.Reason)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile update request rejected", "request": r})
}
