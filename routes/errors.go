package routes

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"eventhub/services"
)

type errorKind struct {
	err    error
	status int
	kind   string
}

// Order matters only for readability; the sentinels do not wrap each other.
var errorKinds = []errorKind{
	{services.ErrValidation, http.StatusBadRequest, "validation"},
	{services.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{services.ErrForbidden, http.StatusForbidden, "forbidden"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrNotRegistered, http.StatusNotFound, "not_registered"},
	{services.ErrDuplicateRegistration, http.StatusConflict, "duplicate_registration"},
	{services.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{services.ErrConflict, http.StatusConflict, "conflict"},
	{services.ErrEventFull, http.StatusUnprocessableEntity, "event_full"},
	{services.ErrInvalidTransition, http.StatusUnprocessableEntity, "invalid_transition"},
}

// statusFor maps a service error onto its HTTP status and error kind.
func statusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err as {"message", "error"}. Unknown errors are logged
// and their text is not exposed.
func writeError(c *gin.Context, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		msg = "Something went wrong. Try again later."
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg, "error": kind})
}

// bindError renders a request binding failure as a validation error,
// listing the failing fields when the validator reports them.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"message": "Could not parse request data.",
			"error":   "validation",
		})
		return
	}
	fields := make(map[string]string, len(verrs))
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
		parts = append(parts, fe.Field()+" failed "+rule)
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"message": "Invalid request: " + strings.Join(parts, ", "),
		"error":   "validation",
		"fields":  fields,
	})
}
