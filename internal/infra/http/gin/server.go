package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"wheelshare/internal/infra/config"
	"wheelshare/internal/infra/obs"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
	Cancel(c *gin.Context)
	Start(c *gin.Context)
	Complete(c *gin.Context)
}

type PaymentHTTP interface {
	Create(c *gin.Context)
	Confirm(c *gin.Context)
	Callback(c *gin.Context)
	Refund(c *gin.Context)
	Get(c *gin.Context)
}

type MeHTTP interface {
	ListBookings(c *gin.Context)
}

type HostBookingHTTP interface {
	List(c *gin.Context)
}

type Handlers struct {
	Booking        BookingHTTP
	Payment        PaymentHTTP
	Me             MeHTTP
	HostBooking    HostBookingHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings/:id", h.Booking.Get)
		api.PATCH("/bookings/:id/approve", h.Booking.Approve)
		api.PATCH("/bookings/:id/reject", h.Booking.Reject)
		api.PATCH("/bookings/:id/cancel", h.Booking.Cancel)
		api.PATCH("/bookings/:id/start", h.Booking.Start)
		api.PATCH("/bookings/:id/complete", h.Booking.Complete)
	}
	if h.Payment != nil {
		payGroup := api.Group("/payments")
		payGroup.POST("/:key/create", h.Payment.Create)
		payGroup.POST("/:key/confirm", h.Payment.Confirm)
		payGroup.POST("/:key/callback", h.Payment.Callback)
		payGroup.POST("/:key/refund", h.Payment.Refund)
		payGroup.GET("/:key", h.Payment.Get)
	}
	if h.Me != nil {
		meGroup := api.Group("/me")
		meGroup.GET("/bookings", h.Me.ListBookings)
	}
	if h.HostBooking != nil {
		hostGroup := api.Group("/host")
		hostGroup.GET("/bookings", h.HostBooking.List)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
