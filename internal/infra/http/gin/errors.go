package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"wheelshare/internal/domain/shared/fault"
)

// statusFor maps error kinds to HTTP statuses in exactly one place. Handlers
// never inspect error text.
func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindUnauthorized:
		return http.StatusForbidden
	case fault.KindInvalidTransition:
		return http.StatusBadRequest
	case fault.KindProvider:
		return http.StatusBadGateway
	case fault.KindSignature:
		return http.StatusBadRequest
	case fault.KindAlreadyProcessed:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": fault.KindOf(err).String()}
	if status < http.StatusInternalServerError {
		body["message"] = err.Error()
	} else {
		body["message"] = "internal error"
	}
	c.JSON(status, body)
}
