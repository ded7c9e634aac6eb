package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	bookingapp "wheelshare/internal/app/booking"
	"wheelshare/internal/app/dto"
	domainbooking "wheelshare/internal/domain/booking"
	"wheelshare/internal/domain/shared/fault"
)

const dateLayout = "2006-01-02"

type BookingHandler struct {
	Service *bookingapp.Service
}

type createBookingRequest struct {
	VehicleID string `json:"vehicle_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Total     int64  `json:"total_price"`
	Currency  string `json:"currency"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		respondError(c, fault.Newf(fault.KindValidation, "invalid start_date %q", req.StartDate))
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		respondError(c, fault.Newf(fault.KindValidation, "invalid end_date %q", req.EndDate))
		return
	}

	bk, err := h.Service.Request(c.Request.Context(), bookingapp.RequestParams{
		VehicleID: req.VehicleID,
		RenterID:  user.ID,
		Start:     start,
		End:       end,
		Total:     req.Total,
		Currency:  req.Currency,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapBooking(bk))
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	bk, err := h.Service.ByID(c.Request.Context(), domainbooking.BookingID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.HasRole("admin") && user.ID != bk.RenterID && user.ID != bk.HostID {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}
	c.JSON(http.StatusOK, dto.MapBooking(bk))
}

type transitionRequest struct {
	Notes    string `json:"notes"`
	Reason   string `json:"reason"`
	Location string `json:"location"`
}

func (h BookingHandler) Approve(c *gin.Context) {
	h.transition(c, func(id domainbooking.BookingID, actor bookingapp.Actor, req transitionRequest) (*domainbooking.Booking, error) {
		return h.Service.Approve(c.Request.Context(), id, actor, req.Notes)
	})
}

func (h BookingHandler) Reject(c *gin.Context) {
	h.transition(c, func(id domainbooking.BookingID, actor bookingapp.Actor, req transitionRequest) (*domainbooking.Booking, error) {
		return h.Service.Reject(c.Request.Context(), id, actor, req.Notes)
	})
}

func (h BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, func(id domainbooking.BookingID, actor bookingapp.Actor, req transitionRequest) (*domainbooking.Booking, error) {
		return h.Service.Cancel(c.Request.Context(), id, actor, req.Reason)
	})
}

func (h BookingHandler) Start(c *gin.Context) {
	h.transition(c, func(id domainbooking.BookingID, actor bookingapp.Actor, req transitionRequest) (*domainbooking.Booking, error) {
		return h.Service.Activate(c.Request.Context(), id, actor, domainbooking.Handover{Location: req.Location})
	})
}

func (h BookingHandler) Complete(c *gin.Context) {
	h.transition(c, func(id domainbooking.BookingID, actor bookingapp.Actor, req transitionRequest) (*domainbooking.Booking, error) {
		return h.Service.Complete(c.Request.Context(), id, actor, domainbooking.Handover{Location: req.Location})
	})
}

func (h BookingHandler) transition(c *gin.Context, apply func(domainbooking.BookingID, bookingapp.Actor, transitionRequest) (*domainbooking.Booking, error)) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req transitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	actor := bookingapp.Actor{ID: user.ID, Admin: user.HasRole("admin")}
	bk, err := apply(domainbooking.BookingID(c.Param("id")), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapBooking(bk))
}

var _ BookingHTTP = BookingHandler{}
