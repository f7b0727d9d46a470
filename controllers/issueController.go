package controllers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/middlewares"
	"civicsync-be/models"
	"civicsync-be/services"
)

type IssueController struct {
	issues *services.IssueService
	logger *slog.Logger
}

func NewIssueController(issues *services.IssueService, logger *slog.Logger) *IssueController {
	return &IssueController{issues: issues, logger: logger}
}

type locationInput struct {
	Coordinates []float64 `json:"coordinates" binding:"omitempty,len=2"`
	Address     string    `json:"address" binding:"max=200"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	Pincode     string    `json:"pincode" binding:"required,pincode"`
}

// CreateIssue handles the creation of a new issue
func (h *IssueController) CreateIssue(c *gin.Context) {
	var input struct {
		Title       string        `json:"title" binding:"required,max=200"`
		Description string        `json:"description" binding:"required,max=1000"`
		Category    string        `json:"category" binding:"required"`
		Department  string        `json:"department" binding:"required,department"`
		Priority    string        `json:"priority"`
		Location    locationInput `json:"location" binding:"required"`
	}
	if !bindJSON(c, &input) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.CreateIssue(ctx, middlewares.CurrentUser(c), services.CreateIssueInput{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Department:  input.Department,
		Priority:    input.Priority,
		Location: models.Location{
			Type:        "Point",
			Coordinates: input.Location.Coordinates,
			Address:     input.Location.Address,
			City:        input.Location.City,
			State:       input.Location.State,
			Pincode:     input.Location.Pincode,
		},
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// GetAllIssues lists the issues visible to the caller with filtering and pagination.
func (h *IssueController) GetAllIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.issues.ListIssues(ctx, middlewares.CurrentUser(c), services.ListParams{
		Status:     c.Query("status"),
		Category:   c.Query("category"),
		Priority:   c.Query("priority"),
		Department: c.Query("department"),
		Pincode:    c.Query("pincode"),
		Sort:       c.DefaultQuery("sort", "newest"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *IssueController) GetIssue(c *gin.Context) {
	id, ok := pathID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.GetIssue(ctx, middlewares.CurrentUser(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UpvoteIssue toggles the caller's upvote.
func (h *IssueController) UpvoteIssue(c *gin.Context) {
	id, ok := pathID(c, "issue")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.issues.ToggleUpvote(ctx, middlewares.CurrentUser(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *IssueController) AddComment(c *gin.Context) {
	id, ok := pathID(c, "issue")
	if !ok {
		return
	}
	var input struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.AddComment(ctx, middlewares.CurrentUser(c), id, input.Text)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (h *IssueController) AssignIssue(c *gin.Context) {
	id, ok := pathID(c, "issue")
	if !ok {
		return
	}
	var input struct {
		OfficerID   string     `json:"officerId" binding:"required"`
		SLADeadline *time.Time `json:"slaDeadline"`
	}
	if !bindJSON(c, &input) {
		return
	}
	officerID, err := primitive.ObjectIDFromHex(input.OfficerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid officer user"})
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.AssignIssue(ctx, middlewares.CurrentUser(c), id, officerID, input.SLADeadline)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *IssueController) UpdateIssueStatus(c *gin.Context) {
	id, ok := pathID(c, "issue")
	if !ok {
		return
	}
	var input struct {
		Status          string `json:"status" binding:"required"`
		ResolutionNotes string `json:"resolutionNotes" binding:"max=2000"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.UpdateStatus(ctx, middlewares.CurrentUser(c), id, input.Status, input.ResolutionNotes)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *IssueController) GetAnalytics(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.issues.Analytics(ctx, middlewares.CurrentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
