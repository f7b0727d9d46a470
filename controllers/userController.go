package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicsync-be/middlewares"
	"civicsync-be/models"
	"civicsync-be/services"
	"civicsync-be/store"
)

// UserController serves the admin user-management endpoints.
type UserController struct {
	admin  *services.AdminService
	logger *slog.Logger
}

func NewUserController(admin *services.AdminService, logger *slog.Logger) *UserController {
	return &UserController{admin: admin, logger: logger}
}

func (h *UserController) GetPendingUsers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.admin.PendingCitizens(ctx, middlewares.CurrentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

func (h *UserController) GetAllUsers(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.admin.ListUsers(ctx, middlewares.CurrentUser(c), store.UserFilter{
		Role:          models.Role(c.Query("role")),
		AccountStatus: models.AccountStatus(c.Query("status")),
		Department:    models.Department(c.Query("department")),
		Pincode:       c.Query("pincode"),
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

func (h *UserController) ApproveUser(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.admin.ApproveCitizen(ctx, middlewares.CurrentUser(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User approved successfully", "user": user})
}

func (h *UserController) RejectUser(c *gin.Context) {
	id, ok := pathID(c, "user")
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

	user, err := h.admin.RejectCitizen(ctx, middlewares.CurrentUser(c), id, input.Reason)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User rejected", "user": user})
}

type staffInput struct {
	Name       string `json:"name" binding:"required,max=50"`
	OfficerID  string `json:"officerId" binding:"required"`
	Password   string `json:"password" binding:"required,min=6"`
	Phone      string `json:"phone"`
	Department string `json:"department" binding:"omitempty,department"`
	Pincode    string `json:"pincode" binding:"omitempty,pincode"`
}

func (in staffInput) toService() services.StaffInput {
	return services.StaffInput{
		Name:       in.Name,
		OfficerID:  in.OfficerID,
		Password:   in.Password,
		Phone:      in.Phone,
		Department: in.Department,
		Pincode:    in.Pincode,
	}
}

func (h *UserController) CreateOfficer(c *gin.Context) {
	var input staffInput
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.admin.CreateOfficer(ctx, middlewares.CurrentUser(c), input.toService())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Officer created successfully", "user": user})
}

func (h *UserController) CreateAdmin(c *gin.Context) {
	var input staffInput
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.admin.CreateAdmin(ctx, middlewares.CurrentUser(c), input.toService())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Admin created successfully", "user": user})
}

func (h *UserController) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	var input struct {
		Name       *string `json:"name"`
		Phone      *string `json:"phone"`
		Department *string `json:"department"`
		Pincode    *string `json:"pincode" binding:"omitempty,pincode"`
		Password   *string `json:"password"`
	}
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.admin.UpdateUser(ctx, middlewares.CurrentUser(c), id, services.UserUpdateInput{
		Name:       input.Name,
		Phone:      input.Phone,
		Department: input.Department,
		Pincode:    input.Pincode,
		Password:   input.Password,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

func (h *UserController) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "user")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.admin.DeleteUser(ctx, middlewares.CurrentUser(c), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *UserController) GetAdminStats(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.admin.Stats(ctx, middlewares.CurrentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
