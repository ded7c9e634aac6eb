package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	bookingapp "wheelshare/internal/app/booking"
	"wheelshare/internal/app/dto"
	domainbooking "wheelshare/internal/domain/booking"
)

type HostBookingHandler struct {
	Bookings *bookingapp.Service
}

// List returns the host's bookings, optionally filtered by ?status=.
func (h HostBookingHandler) List(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var status domainbooking.Status
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed, err := domainbooking.ParseStatus(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		status = parsed
	}
	items, err := h.Bookings.ListByHost(c.Request.Context(), user.ID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBookings(items))
}

var _ HostBookingHTTP = HostBookingHandler{}
