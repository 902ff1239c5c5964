package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"booking-service/internal/service"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	bookingService *service.BookingService
	paymentService *service.PaymentService
	reconciler     *service.SettlementReconciler
	redirectBase   string
}

// NewHandler creates a new HTTP handler. redirectBase is the public app
// base URL callback redirects point at.
func NewHandler(
	bookingService *service.BookingService,
	paymentService *service.PaymentService,
	reconciler *service.SettlementReconciler,
	redirectBase string,
) *Handler {
	return &Handler{
		bookingService: bookingService,
		paymentService: paymentService,
		reconciler:     reconciler,
		redirectBase:   redirectBase,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rooms/:id/availability", h.checkAvailability)
		v1.GET("/hotels/:id/rooms", h.listHotelRooms)
		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings/:id", h.getBooking)
		v1.POST("/orders", h.createOrder)
		v1.GET("/transactions/:id", h.getTransaction)
		v1.GET("/payments/callback", h.paymentCallback)
		v1.POST("/payments/callback", h.paymentCallback)
		v1.GET("/calendar", h.calendar)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkAvailability handles the room availability read used by the
// room-selection UI
func (h *Handler) checkAvailability(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room ID"})
		return
	}

	checkIn, err := service.ParseDate(c.Query("check_in"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid check_in date"})
		return
	}
	checkOut, err := service.ParseDate(c.Query("check_out"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid check_out date"})
		return
	}

	available, err := h.bookingService.CheckAvailability(c.Request.Context(), roomID, checkIn, checkOut)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":   roomID,
		"check_in":  c.Query("check_in"),
		"check_out": c.Query("check_out"),
		"available": available,
	})
}

// listHotelRooms lists a hotel's rooms
func (h *Handler) listHotelRooms(c *gin.Context) {
	hotelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotel ID"})
		return
	}

	rooms, err := h.bookingService.HotelRooms(c.Request.Context(), hotelID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// createBooking handles booking creation
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.bookingService.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getBooking handles get booking by ID
func (h *Handler) getBooking(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	booking, rooms, err := h.bookingService.GetBooking(c.Request.Context(), bookingID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking": booking,
		"rooms":   rooms,
	})
}

// createOrder places an order with the payment gateway
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.paymentService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getTransaction handles get transaction by ID
func (h *Handler) getTransaction(c *gin.Context) {
	txnID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	txn, err := h.paymentService.GetTransaction(c.Request.Context(), txnID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// calendar handles the admin calendar aggregation read
func (h *Handler) calendar(c *gin.Context) {
	var filter store.CalendarFilter

	if v := c.Query("hotel_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotel_id"})
			return
		}
		filter.HotelID = &id
	}
	if v := c.Query("location_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location_id"})
			return
		}
		filter.LocationID = &id
	}
	if v := c.Query("start_date"); v != "" {
		d, err := service.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date"})
			return
		}
		filter.StartDate = &d
	}
	if v := c.Query("end_date"); v != "" {
		d, err := service.ParseDate(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date"})
			return
		}
		filter.EndDate = &d
	}

	entries, err := h.bookingService.Calendar(c.Request.Context(), filter)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": entries})
}

// renderError maps domain errors to HTTP responses without leaking
// internals
func (h *Handler) renderError(c *gin.Context, err error) {
	var couponErr *service.CouponInvalidError

	switch {
	case errors.Is(err, store.ErrRoomUnavailable):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Room unavailable for the requested dates",
			"reason": "room_unavailable",
		})
	case errors.Is(err, store.ErrBookingHasActivePayment):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Booking already has an active payment",
			"reason": "booking_has_active_payment",
		})
	case errors.Is(err, service.ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "A request with this idempotency key is already in progress",
			"reason": "duplicate_request",
		})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Coupon cannot be applied",
			"reason": couponErr.Reason,
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
	case errors.Is(err, store.ErrHotelNotFound),
		errors.Is(err, store.ErrBookingNotFound),
		errors.Is(err, store.ErrRoomNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
