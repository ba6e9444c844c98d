package client

import (
	"context"
	"net/http"
	"time"

	"github.com/thejas/flightbook/internal/domain"
)

// BookingAPI is what the payment service needs from the booking service.
type BookingAPI interface {
	GetSnapshot(ctx context.Context, token, bookingID string) (*domain.BookingSnapshot, error)
	UpdateStatus(ctx context.Context, token, bookingID string, status domain.BookingStatus) error
}

type BookingClient struct {
	httpClient
}

func NewBookingClient(baseURL string, timeout time.Duration, attempts int) *BookingClient {
	return &BookingClient{httpClient: newHTTPClient(baseURL, timeout, attempts)}
}

type statusUpdateRequest struct {
	Status domain.BookingStatus `json:"status"`
}

func (c *BookingClient) GetSnapshot(ctx context.Context, token, bookingID string) (*domain.BookingSnapshot, error) {
	var snap domain.BookingSnapshot
	err := c.doWithRetry(ctx, http.MethodGet, "/api/bookings/"+bookingID, token, nil, &snap)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// UpdateStatus drives the settlement callback. The transition table on the
// booking side makes a retried callback a WrongState no-op rather than a
// double transition, so retrying on upstream failure is safe.
func (c *BookingClient) UpdateStatus(ctx context.Context, token, bookingID string, status domain.BookingStatus) error {
	return c.doWithRetry(ctx, http.MethodPut, "/api/bookings/"+bookingID+"/status", token, statusUpdateRequest{Status: status}, nil)
}

var _ BookingAPI = (*BookingClient)(nil)
