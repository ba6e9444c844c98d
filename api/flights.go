package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/domain"
	"github.com/thejas/flightbook/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

type flightResponse struct {
	ID             int64  `json:"id"`
	FlightNumber   string `json:"flight_number"`
	Airline        string `json:"airline"`
	Origin         string `json:"origin"`
	Destination    string `json:"destination"`
	DepartureTime  string `json:"departure_time"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
	PriceCents     int64  `json:"price_cents"`
	Status         string `json:"status"`
}

func toFlightResponse(f *domain.Flight) flightResponse {
	return flightResponse{
		ID:             f.ID,
		FlightNumber:   f.FlightNumber,
		Airline:        f.Airline,
		Origin:         f.Origin,
		Destination:    f.Destination,
		DepartureTime:  f.DepartureTime.Format(time.RFC3339),
		TotalSeats:     f.TotalSeats,
		AvailableSeats: f.AvailableSeats,
		PriceCents:     f.PriceCents,
		Status:         string(f.Status),
	}
}

type seatUpdateRequest struct {
	FlightID int64  `json:"flight_id"`
	Seats    int    `json:"seats"`
	OpKey    string `json:"op_key"`
}

type seatUpdateResponse struct {
	AvailableSeats int `json:"available_seats"`
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.GET("/:id", h.get)
	router.POST("/", h.create)
	router.POST("/:id/cancel", h.cancel)
	router.POST("/reserve", h.reserve)
	router.POST("/release", h.release)
}

func (h *FlightHandler) list(c *gin.Context) {
	result, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]flightResponse, 0, len(result))
	for i := range result {
		out = append(out, toFlightResponse(&result[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid flight id"})
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight.Snapshot())
}

func (h *FlightHandler) create(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	var req flights.CreateFlightInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	flight, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFlightResponse(flight))
}

func (h *FlightHandler) cancel(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": "invalid flight id"})
		return
	}
	flight, err := h.service.CancelFlight(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFlightResponse(flight))
}

func (h *FlightHandler) reserve(c *gin.Context) {
	var req seatUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	available, err := h.service.Reserve(c.Request.Context(), req.FlightID, req.Seats, req.OpKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, seatUpdateResponse{AvailableSeats: available})
}

func (h *FlightHandler) release(c *gin.Context) {
	var req seatUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	available, err := h.service.Release(c.Request.Context(), req.FlightID, req.Seats, req.OpKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, seatUpdateResponse{AvailableSeats: available})
}

func requireAdmin(c *gin.Context) bool {
	identity, ok := auth.IdentityFrom(c)
	if !ok || !identity.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "UNAUTHORIZED", "message": "admin role required"})
		c.Abort()
		return false
	}
	return true
}
