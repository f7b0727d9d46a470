package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicsync-be/middlewares"
	"civicsync-be/models"
	"civicsync-be/services"
	authUtils "civicsync-be/utils"
)

type AuthController struct {
	auth       *services.AuthService
	tokens     *authUtils.Tokens
	production bool
	domain     string
	logger     *slog.Logger
}

func NewAuthController(auth *services.AuthService, tokens *authUtils.Tokens, production bool, domain string, logger *slog.Logger) *AuthController {
	return &AuthController{auth: auth, tokens: tokens, production: production, domain: domain, logger: logger}
}

func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"name":          u.Name,
		"role":          u.Role,
		"aadharNumber":  u.AadharNumber,
		"officerId":     u.OfficerID,
		"department":    u.Department,
		"pincode":       u.Pincode,
		"phone":         u.Phone,
		"address":       u.Address,
		"accountStatus": u.AccountStatus,
		"civicCredits":  u.CivicCredits,
		"badges":        u.Badges,
		"createdAt":     u.CreatedAt,
	}
}

// RegisterUser creates a citizen account that waits for admin approval.
func (h *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Name         string `json:"name" binding:"required,max=50"`
		AadharNumber string `json:"aadharNumber" binding:"required,len=12,numeric"`
		Password     string `json:"password" binding:"required,min=6"`
		Phone        string `json:"phone"`
		Address      string `json:"address"`
		Pincode      string `json:"pincode" binding:"omitempty,pincode"`
	}
	if !bindJSON(c, &input) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.auth.Register(ctx, services.RegisterInput{
		Name:         input.Name,
		AadharNumber: input.AadharNumber,
		Password:     input.Password,
		Phone:        input.Phone,
		Address:      input.Address,
		Pincode:      input.Pincode,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Your account is pending admin approval.",
		"user":    userResponse(user),
	})
}

// LoginUser signs in a citizen by Aadhaar number or staff by officer id.
func (h *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		LoginID  string `json:"loginId" binding:"required"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role" binding:"required,oneof=citizen officer admin"`
	}
	if !bindJSON(c, &input) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.auth.Login(ctx, input.Role, input.LoginID, input.Password)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	token, err := h.tokens.GenerateAndSetToken(user.ID.Hex(), string(user.Role))
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	domain := h.domain
	// Cross-origin cookies in production must not pin a domain.
	if h.production {
		domain = ""
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    token,
		MaxAge:   int(h.tokens.TTL().Seconds()),
		Path:     "/",
		Domain:   domain,
		Secure:   h.production,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})

	resp := userResponse(user)
	resp["token"] = token
	c.JSON(http.StatusOK, resp)
}

// GetMe returns the authenticated user's profile.
func (h *AuthController) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, userResponse(middlewares.CurrentUser(c)))
}

// LogoutUser clears the auth cookie.
func (h *AuthController) LogoutUser(c *gin.Context) {
	c.SetCookie(middlewares.AuthCookie, "", -1, "/", h.domain, h.production, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *AuthController) GetNotifications(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	items, err := h.auth.Notifications(ctx, middlewares.CurrentUser(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

func (h *AuthController) MarkNotificationRead(c *gin.Context) {
	id, ok := pathID(c, "notification")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.auth.MarkNotificationRead(ctx, middlewares.CurrentUser(c), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
