package middlewares

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/apperrors"
	"civicsync-be/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	gin.SetMode(gin.TestMode)
}

func withUser(u *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if u != nil {
			c.Set(principalKey, u)
		}
		c.Next()
	}
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestStatusFor(t *testing.T) {
	cases := map[apperrors.Code]int{
		apperrors.CodeValidation:         http.StatusBadRequest,
		apperrors.CodeInsufficientCredit: http.StatusBadRequest,
		apperrors.CodeUnauthorized:       http.StatusUnauthorized,
		apperrors.CodeAccessDenied:       http.StatusForbidden,
		apperrors.CodeConfiguration:      http.StatusForbidden,
		apperrors.CodeNotFound:           http.StatusNotFound,
		apperrors.CodeInvalidTransition:  http.StatusConflict,
		apperrors.CodeConflict:           http.StatusConflict,
		apperrors.CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), "code %v", code)
	}
}

func TestRespondError(t *testing.T) {
	r := gin.New()
	r.GET("/credit", func(c *gin.Context) {
		RespondError(c, discard, apperrors.NewInsufficientCredit(100, 40))
	})
	r.GET("/internal", func(c *gin.Context) {
		RespondError(c, discard, apperrors.Wrap(io.ErrUnexpectedEOF, apperrors.CodeInternal, "Something went wrong"))
	})

	w := serve(r, http.MethodGet, "/credit")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient credits","required":100,"available":40}`, w.Body.String())

	w = serve(r, http.MethodGet, "/internal")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "unexpected EOF")
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		user *models.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"citizen", &models.User{Role: models.RoleCitizen}, http.StatusForbidden},
		{"officer", &models.User{Role: models.RoleOfficer}, http.StatusOK},
		{"admin", &models.User{Role: models.RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", withUser(tt.user), RequireRole(models.RoleOfficer, models.RoleAdmin), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			assert.Equal(t, tt.want, serve(r, http.MethodGet, "/").Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(discard))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	w := serve(r, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "client-id", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, strings.Repeat("x", 65), w.Body.String())
}

func TestIssueRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCitizen}
	r := gin.New()
	r.POST("/issues", withUser(user), IssueRateLimiter(client, "issue-limit", 2, discard), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/issues").Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/issues").Code)
	w := serve(r, http.MethodPost, "/issues")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "retry_after")

	key := "issue-limit:" + user.ID.Hex()
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	mr.FastForward(25 * time.Hour)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/issues").Code)

	t.Run("fails open when redis is down", func(t *testing.T) {
		mr.Close()
		assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/issues").Code)
	})
}

func TestIssueRateLimiterRepairsMissingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	user := &models.User{ID: primitive.NewObjectID(), Role: models.RoleCitizen}
	key := "issue-limit:" + user.ID.Hex()
	// Counter left behind by a request whose EXPIRE never landed.
	require.NoError(t, mr.Set(key, "5"))
	require.Zero(t, mr.TTL(key))

	r := gin.New()
	r.POST("/issues", withUser(user), IssueRateLimiter(client, "issue-limit", 2, discard), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/issues").Code)
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	mr.FastForward(25 * time.Hour)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/issues").Code)
}

func TestIssueRateLimiterDisabled(t *testing.T) {
	r := gin.New()
	r.POST("/issues", IssueRateLimiter(nil, "issue-limit", 2, discard), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	for range 3 {
		assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/issues").Code)
	}
}
