package client

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/thejas/flightbook/internal/domain"
)

// FlightAPI is what the booking service needs from the flight service.
type FlightAPI interface {
	GetSnapshot(ctx context.Context, token string, flightID int64) (*domain.FlightSnapshot, error)
	Reserve(ctx context.Context, token string, flightID int64, seats int, opKey string) (int, error)
	Release(ctx context.Context, token string, flightID int64, seats int, opKey string) (int, error)
}

type FlightClient struct {
	httpClient
}

func NewFlightClient(baseURL string, timeout time.Duration, attempts int) *FlightClient {
	return &FlightClient{httpClient: newHTTPClient(baseURL, timeout, attempts)}
}

type seatUpdateRequest struct {
	FlightID int64  `json:"flight_id"`
	Seats    int    `json:"seats"`
	OpKey    string `json:"op_key"`
}

type seatUpdateResponse struct {
	AvailableSeats int `json:"available_seats"`
}

func (c *FlightClient) GetSnapshot(ctx context.Context, token string, flightID int64) (*domain.FlightSnapshot, error) {
	var snap domain.FlightSnapshot
	err := c.doWithRetry(ctx, http.MethodGet, "/api/flights/"+strconv.FormatInt(flightID, 10), token, nil, &snap)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *FlightClient) Reserve(ctx context.Context, token string, flightID int64, seats int, opKey string) (int, error) {
	var resp seatUpdateResponse
	err := c.doWithRetry(ctx, http.MethodPost, "/api/flights/reserve", token, seatUpdateRequest{FlightID: flightID, Seats: seats, OpKey: opKey}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.AvailableSeats, nil
}

func (c *FlightClient) Release(ctx context.Context, token string, flightID int64, seats int, opKey string) (int, error) {
	var resp seatUpdateResponse
	err := c.doWithRetry(ctx, http.MethodPost, "/api/flights/release", token, seatUpdateRequest{FlightID: flightID, Seats: seats, OpKey: opKey}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.AvailableSeats, nil
}

var _ FlightAPI = (*FlightClient)(nil)
