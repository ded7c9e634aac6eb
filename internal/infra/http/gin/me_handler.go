package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "wheelshare/internal/app/booking"
	"wheelshare/internal/app/dto"
)

type MeHandler struct {
	Bookings *bookingapp.Service
}

func (h MeHandler) ListBookings(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	items, err := h.Bookings.ListByRenter(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBookings(items))
}

var _ MeHTTP = MeHandler{}
