package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"servio/marketplace-core/internal/apperr"
)

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindNotAuthorized:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	body := gin.H{"error": err.Error()}
	if kind := apperr.KindOf(err); kind != 0 {
		body["kind"] = kind.String()
	}
	if status == http.StatusInternalServerError {
		// Do not leak internals on unclassified failures.
		body = gin.H{"error": "internal error"}
	}
	c.JSON(status, body)
}
