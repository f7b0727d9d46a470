package middlewares

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/apperrors"
	"civicsync-be/models"
	authUtils "civicsync-be/utils"
)

const (
	AuthCookie   = "auth_token"
	principalKey = "principal"
)

// PrincipalLoader resolves the account behind a verified token.
type PrincipalLoader interface {
	Principal(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Authenticator struct {
	tokens     *authUtils.Tokens
	principals PrincipalLoader
	logger     *slog.Logger
}

func NewAuthenticator(tokens *authUtils.Tokens, principals PrincipalLoader, logger *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, principals: principals, logger: logger}
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return strings.TrimSpace(h)
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}

func (a *Authenticator) authenticate(c *gin.Context, tokenString string) (*models.User, error) {
	claims, err := a.tokens.Parse(tokenString)
	if err != nil {
		a.logger.WarnContext(c.Request.Context(), "token validation failed",
			"error", err,
			"request_id", RequestIDFrom(c),
		)
		return nil, apperrors.New(apperrors.CodeUnauthorized, "Invalid authorization token")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "Invalid token claims")
	}
	return a.principals.Principal(c.Request.Context(), id)
}

// AuthMiddleware requires a valid token and loads the principal.
func (a *Authenticator) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}
		principal, err := a.authenticate(c, tokenString)
		if err != nil {
			RespondError(c, a.logger, err)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// OptionalAuth loads the principal when a valid token is sent and lets
// anonymous requests through. An invalid token is still rejected.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFrom(c)
		if tokenString == "" {
			c.Next()
			return
		}
		principal, err := a.authenticate(c, tokenString)
		if err != nil {
			RespondError(c, a.logger, err)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// CurrentUser returns the authenticated principal, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(principalKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		if !slices.Contains(roles, u.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied. Insufficient permissions."})
			return
		}
		c.Next()
	}
}
