package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/domain"
	"github.com/thejas/flightbook/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type bookingResponse struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	FlightID         int64  `json:"flight_id"`
	NumSeats         int    `json:"num_seats"`
	TotalAmountCents int64  `json:"total_amount_cents"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

type statusUpdateRequest struct {
	Status domain.BookingStatus `json:"status"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.POST("/:id/cancel", h.cancel)
	router.PUT("/:id/status", h.updateStatus)
}

// callerFrom rebuilds the verified identity plus the raw credential so the
// service can relay it on its own remote calls.
func callerFrom(c *gin.Context) (booking.Caller, bool) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "missing identity"})
		return booking.Caller{}, false
	}
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer"))
	return booking.Caller{Identity: identity, Token: token}, true
}

func (h *BookingHandler) create(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	created, err := h.service.CreateBooking(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(created))
}

func (h *BookingHandler) list(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	bookings, err := h.service.ListBookings(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *BookingHandler) get(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	found, err := h.service.GetBooking(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found.Snapshot())
}

func (h *BookingHandler) cancel(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	cancelled, err := h.service.CancelBooking(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(cancelled))
}

func (h *BookingHandler) updateStatus(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	updated, err := h.service.UpdateStatus(c.Request.Context(), caller, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(updated))
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:               b.ID,
		OwnerID:          b.OwnerID,
		FlightID:         b.FlightID,
		NumSeats:         b.NumSeats,
		TotalAmountCents: b.TotalAmountCents,
		Status:           string(b.Status),
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}
