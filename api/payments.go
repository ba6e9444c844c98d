package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/domain"
	"github.com/thejas/flightbook/internal/service/payment"
)

type PaymentHandler struct {
	service payment.PaymentUseCase
}

type paymentResponse struct {
	ID                string `json:"id"`
	BookingID         string `json:"booking_id"`
	AmountCents       int64  `json:"amount_cents"`
	Method            string `json:"method"`
	Status            string `json:"status"`
	TransactionID     string `json:"transaction_id,omitempty"`
	RefundAmountCents int64  `json:"refund_amount_cents,omitempty"`
	FailureReason     string `json:"failure_reason,omitempty"`
	SettledAt         string `json:"settled_at,omitempty"`
}

type refundRequest struct {
	RefundAmountCents int64 `json:"refund_amount_cents"`
}

func NewPaymentHandler(service payment.PaymentUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.process)
	router.GET("/:id", h.get)
	router.GET("/booking/:bookingId", h.getByBooking)
	router.POST("/:id/refund", h.refund)
}

func paymentCallerFrom(c *gin.Context) (payment.Caller, bool) {
	identity, ok := auth.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "missing identity"})
		return payment.Caller{}, false
	}
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer"))
	return payment.Caller{Identity: identity, Token: token}, true
}

func (h *PaymentHandler) process(c *gin.Context) {
	caller, ok := paymentCallerFrom(c)
	if !ok {
		return
	}
	var req payment.ProcessPaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	processed, err := h.service.ProcessPayment(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPaymentResponse(processed))
}

func (h *PaymentHandler) get(c *gin.Context) {
	caller, ok := paymentCallerFrom(c)
	if !ok {
		return
	}
	found, err := h.service.GetPayment(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(found))
}

func (h *PaymentHandler) getByBooking(c *gin.Context) {
	caller, ok := paymentCallerFrom(c)
	if !ok {
		return
	}
	found, err := h.service.GetPaymentByBooking(c.Request.Context(), caller, c.Param("bookingId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(found))
}

func (h *PaymentHandler) refund(c *gin.Context) {
	caller, ok := paymentCallerFrom(c)
	if !ok {
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "VALIDATION_ERROR", "message": err.Error()})
		return
	}
	refunded, err := h.service.Refund(c.Request.Context(), caller, c.Param("id"), req.RefundAmountCents)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentResponse(refunded))
}

func toPaymentResponse(p *domain.Payment) paymentResponse {
	resp := paymentResponse{
		ID:                p.ID,
		BookingID:         p.BookingID,
		AmountCents:       p.AmountCents,
		Method:            string(p.Method),
		Status:            string(p.Status),
		TransactionID:     p.TransactionID,
		RefundAmountCents: p.RefundAmountCents,
		FailureReason:     p.FailureReason,
	}
	if p.SettledAt != nil {
		resp.SettledAt = p.SettledAt.Format(time.RFC3339)
	}
	return resp
}
