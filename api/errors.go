package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thejas/flightbook/internal/domain"
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:            http.StatusBadRequest,
	domain.KindNotFound:              http.StatusNotFound,
	domain.KindInsufficientInventory: http.StatusConflict,
	domain.KindCapacityExceeded:      http.StatusConflict,
	domain.KindAmountMismatch:        http.StatusBadRequest,
	domain.KindDuplicatePayment:      http.StatusConflict,
	domain.KindInvalidRefund:         http.StatusBadRequest,
	domain.KindWrongState:            http.StatusConflict,
	domain.KindUnauthorized:          http.StatusForbidden,
	domain.KindUpstream:              http.StatusBadGateway,
	domain.KindInternal:              http.StatusInternalServerError,
}

// respondError maps an error to its kind and a safe message. Untyped errors
// become INTERNAL_ERROR with a generic message so nothing internal leaks.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := "internal error"
	var de *domain.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	c.JSON(status, gin.H{"error": string(kind), "message": message})
}
