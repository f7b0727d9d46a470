package middlewares

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"civicsync-be/apperrors"
)

// StatusFor maps an error code to the HTTP status returned to clients.
func StatusFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeValidation, apperrors.CodeInsufficientCredit:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeAccessDenied, apperrors.CodeConfiguration:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidTransition, apperrors.CodeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// RespondError aborts the request with the error's status and user-facing
// message. Internal causes are logged, never returned.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	code := apperrors.CodeOf(err)
	status := StatusFor(code)
	body := gin.H{"error": apperrors.MessageOf(err)}

	var ic *apperrors.InsufficientCredit
	if errors.As(err, &ic) {
		body["required"] = ic.Required
		body["available"] = ic.Available
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "request failed",
			"error", err,
			"path", c.FullPath(),
			"request_id", RequestIDFrom(c),
		)
	}
	c.AbortWithStatusJSON(status, body)
}
