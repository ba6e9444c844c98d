package flights

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/thejas/flightbook/internal/domain"
)

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) CancelFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Reserve(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	args := m.Called(ctx, flightID, seats, opKey)
	return args.Int(0), args.Error(1)
}

func (m *MockFlightRepository) Release(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	args := m.Called(ctx, flightID, seats, opKey)
	return args.Int(0), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	args := m.Called(ctx, flights)
	return args.Error(0)
}

func (m *MockCache) InvalidateFlights(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(nullWriter{})
	return log
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestList_CacheHitSkipsRepository(t *testing.T) {
	repo := &MockFlightRepository{}
	cache := &MockCache{}
	service := NewFlightService(repo, cache, quietLogger())

	ctx := context.Background()
	cached := []domain.Flight{{ID: 1, FlightNumber: "FB101"}}
	cache.On("GetFlights", ctx).Return(cached, nil).Once()

	flights, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, cached, flights)
	repo.AssertNotCalled(t, "List")
}

func TestList_CacheMissFillsCache(t *testing.T) {
	repo := &MockFlightRepository{}
	cache := &MockCache{}
	service := NewFlightService(repo, cache, quietLogger())

	ctx := context.Background()
	stored := []domain.Flight{{ID: 1, FlightNumber: "FB101"}}
	cache.On("GetFlights", ctx).Return(nil, nil).Once()
	repo.On("List", ctx).Return(stored, nil).Once()
	cache.On("SetFlights", ctx, stored).Return(nil).Once()

	flights, err := service.List(ctx)

	assert.NoError(t, err)
	assert.Equal(t, stored, flights)
	cache.AssertExpectations(t)
}

func TestCreate_Validation(t *testing.T) {
	service := NewFlightService(&MockFlightRepository{}, nil, quietLogger())
	ctx := context.Background()

	testCases := []struct {
		name  string
		input CreateFlightInput
	}{
		{"zero seats", CreateFlightInput{FlightNumber: "FB101", TotalSeats: 0, DepartureTime: "2026-10-01T10:00:00Z"}},
		{"negative price", CreateFlightInput{FlightNumber: "FB101", TotalSeats: 10, PriceCents: -1, DepartureTime: "2026-10-01T10:00:00Z"}},
		{"missing flight number", CreateFlightInput{TotalSeats: 10, DepartureTime: "2026-10-01T10:00:00Z"}},
		{"bad departure time", CreateFlightInput{FlightNumber: "FB101", TotalSeats: 10, DepartureTime: "tomorrow"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			flight, err := service.Create(ctx, tc.input)
			assert.Nil(t, flight)
			assert.True(t, domain.IsKind(err, domain.KindValidation))
		})
	}
}

func TestCreate_InvalidatesCache(t *testing.T) {
	repo := &MockFlightRepository{}
	cache := &MockCache{}
	service := NewFlightService(repo, cache, quietLogger())

	ctx := context.Background()
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Flight")).Return(nil).Once()
	cache.On("InvalidateFlights", ctx).Return(nil).Once()

	flight, err := service.Create(ctx, CreateFlightInput{
		FlightNumber:  "FB101",
		Airline:       "FlightBook Air",
		Origin:        "BLR",
		Destination:   "DEL",
		DepartureTime: "2026-10-01T10:00:00Z",
		TotalSeats:    180,
		PriceCents:    450000,
	})

	assert.NoError(t, err)
	assert.Equal(t, "FB101", flight.FlightNumber)
	cache.AssertExpectations(t)
}

func TestReserve_RejectsNonPositiveSeats(t *testing.T) {
	repo := &MockFlightRepository{}
	service := NewFlightService(repo, nil, quietLogger())

	_, err := service.Reserve(context.Background(), 1, 0, "res:x")

	assert.True(t, domain.IsKind(err, domain.KindValidation))
	repo.AssertNotCalled(t, "Reserve")
}

func TestReserve_InvalidatesCache(t *testing.T) {
	repo := &MockFlightRepository{}
	cache := &MockCache{}
	service := NewFlightService(repo, cache, quietLogger())

	ctx := context.Background()
	repo.On("Reserve", ctx, int64(1), 2, "res:b-1").Return(3, nil).Once()
	cache.On("InvalidateFlights", ctx).Return(nil).Once()

	available, err := service.Reserve(ctx, 1, 2, "res:b-1")

	assert.NoError(t, err)
	assert.Equal(t, 3, available)
	cache.AssertExpectations(t)
}

// memoryLedger mirrors the ledger semantics in memory: conditional bound
// checks and op-key dedupe under a single lock. It backs the concurrency
// tests below.
type memoryLedger struct {
	mu        sync.Mutex
	total     int
	available int
	applied   map[string]int
}

func newMemoryLedger(total int) *memoryLedger {
	return &memoryLedger{total: total, available: total, applied: make(map[string]int)}
}

func (l *memoryLedger) List(ctx context.Context) ([]domain.Flight, error) { return nil, nil }
func (l *memoryLedger) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return nil, nil
}
func (l *memoryLedger) Create(ctx context.Context, flight *domain.Flight) error { return nil }
func (l *memoryLedger) CancelFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	return nil, nil
}

func (l *memoryLedger) Reserve(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	return l.apply(-seats, opKey)
}

func (l *memoryLedger) Release(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	return l.apply(seats, opKey)
}

func (l *memoryLedger) apply(delta int, opKey string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if after, ok := l.applied[opKey]; ok {
		return after, nil
	}
	next := l.available + delta
	if next < 0 {
		return 0, domain.E(domain.KindInsufficientInventory, "not enough seats")
	}
	if next > l.total {
		return 0, domain.E(domain.KindCapacityExceeded, "release would exceed capacity")
	}
	l.available = next
	l.applied[opKey] = next
	return next, nil
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	ledger := newMemoryLedger(10)
	service := NewFlightService(ledger, nil, quietLogger())
	ctx := context.Background()

	const workers = 30
	var wg sync.WaitGroup
	results := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = service.Reserve(ctx, 1, 1, "res:"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, domain.IsKind(err, domain.KindInsufficientInventory))
		}
	}

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0, ledger.available)
}

func TestRelease_DuplicateOpKeyAppliesOnce(t *testing.T) {
	ledger := newMemoryLedger(10)
	service := NewFlightService(ledger, nil, quietLogger())
	ctx := context.Background()

	_, err := service.Reserve(ctx, 1, 4, "res:b-1")
	assert.NoError(t, err)

	first, err := service.Release(ctx, 1, 4, "rel:b-1")
	assert.NoError(t, err)
	assert.Equal(t, 10, first)

	// Retried compensation reuses the key and must not over-credit.
	second, err := service.Release(ctx, 1, 4, "rel:b-1")
	assert.NoError(t, err)
	assert.Equal(t, 10, second)
	assert.Equal(t, 10, ledger.available)
}

func TestRelease_FreshKeyBoundedByCapacity(t *testing.T) {
	ledger := newMemoryLedger(10)
	service := NewFlightService(ledger, nil, quietLogger())
	ctx := context.Background()

	_, err := service.Release(ctx, 1, 1, "rel:other")

	assert.True(t, domain.IsKind(err, domain.KindCapacityExceeded))
}
