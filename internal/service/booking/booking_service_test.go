package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nvoronina/flightbooking/internal/domain"
	"github.com/nvoronina/flightbooking/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) TakenSeats(ctx context.Context, flightID int64) (map[string]struct{}, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockBookingRepository) Insert(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByRef(ctx context.Context, ref string, userID int64) (*domain.Booking, error) {
	args := m.Called(ctx, ref, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, bookingID int64, expected, next domain.BookingStatus) (bool, error) {
	args := m.Called(ctx, bookingID, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetail, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BookingDetail), args.Error(1)
}

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Search(ctx context.Context, criteria repository.SearchCriteria) ([]domain.Flight, error) {
	args := m.Called(ctx, criteria)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) AcquireSeatLock(ctx context.Context, flightID int64, seat string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, flightID, seat, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) ReleaseSeatLock(ctx context.Context, flightID int64, seat string) error {
	args := m.Called(ctx, flightID, seat)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func testFlight() *domain.Flight {
	return &domain.Flight{
		ID:              7,
		FlightNo:        "DG101",
		Src:             "Coimbatore",
		Dst:             "Bengaluru",
		DepartTime:      "07:30",
		DurationMinutes: 90,
		BaseFare:        2000.0,
		TotalSeats:      30,
	}
}

func TestBookingService_Book_Success(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}

	service := NewBookingService(mockBookings, mockFlights, mockCache, mockProducer, "booking-events")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockCache.On("AcquireSeatLock", ctx, int64(7), "3C", mock.Anything).Return(true, nil).Once()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Run(func(args mock.Arguments) {
		b := args.Get(1).(*domain.Booking)
		b.ID = 1
		b.CreatedAt = time.Now()
	}).Return(nil).Once()
	mockCache.On("ReleaseSeatLock", ctx, int64(7), "3C").Return(nil).Once()
	mockProducer.On("Publish", ctx, "booking-events", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "3c"})

	assert.NoError(t, err)
	assert.Equal(t, "3C", result.Booking.Seat)
	assert.Equal(t, domain.BookingStatusBooked, result.Booking.Status)
	assert.Regexp(t, `^BK012007\d{3}$`, result.Booking.BookingRef)
	assert.Equal(t, 2100.0, result.Fare.Base+result.Fare.Tax)
	assert.Equal(t, 2200.0, result.Booking.Fare)
	assert.Equal(t, 2200.0, result.Fare.Total)

	mockBookings.AssertExpectations(t)
	mockFlights.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_Book_FlightNotFound(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(99)).Return(nil, domain.ErrFlightNotFound).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 99, Seat: "1A"})

	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	assert.Nil(t, result)
	mockBookings.AssertNotCalled(t, "Insert")
}

func TestBookingService_Book_InvalidSeatFormat(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "ZZ"})

	assert.ErrorIs(t, err, domain.ErrInvalidSeatFormat)
	assert.Nil(t, result)
	mockBookings.AssertNotCalled(t, "TakenSeats")
	mockBookings.AssertNotCalled(t, "Insert")
}

func TestBookingService_Book_SeatOutOfRange(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "31A"})

	assert.ErrorIs(t, err, domain.ErrSeatOutOfRange)
	assert.Nil(t, result)
	mockBookings.AssertNotCalled(t, "Insert")
}

func TestBookingService_Book_SeatTakenPrecheck(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{"3C": {}}, nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "3C"})

	assert.ErrorIs(t, err, domain.ErrSeatTaken)
	assert.Nil(t, result)
	mockBookings.AssertNotCalled(t, "Insert")
}

func TestBookingService_Book_SeatLocked(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockCache := &MockCache{}

	service := NewBookingService(mockBookings, mockFlights, mockCache, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockCache.On("AcquireSeatLock", ctx, int64(7), "3C", mock.Anything).Return(false, nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "3C"})

	assert.ErrorIs(t, err, domain.ErrSeatTaken)
	assert.Nil(t, result)
	mockBookings.AssertNotCalled(t, "Insert")
	mockCache.AssertNotCalled(t, "ReleaseSeatLock")
}

func TestBookingService_Book_SeatConflictAtInsert(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockCache := &MockCache{}

	service := NewBookingService(mockBookings, mockFlights, mockCache, nil, "")

	ctx := context.Background()

	// Pre-check sees the seat free; the store rejects the insert. The
	// store is the authority.
	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockCache.On("AcquireSeatLock", ctx, int64(7), "3C", mock.Anything).Return(true, nil).Once()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Return(domain.ErrSeatTaken).Once()
	mockCache.On("ReleaseSeatLock", ctx, int64(7), "3C").Return(nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "3C"})

	assert.ErrorIs(t, err, domain.ErrSeatTaken)
	assert.Nil(t, result)
	mockCache.AssertExpectations(t)
}

func TestBookingService_Book_RefCollisionRetried(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Return(domain.ErrDuplicateReference).Twice()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Run(func(args mock.Arguments) {
		b := args.Get(1).(*domain.Booking)
		b.ID = 1
		b.CreatedAt = time.Now()
	}).Return(nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "3C"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockBookings.AssertNumberOfCalls(t, "Insert", 3)
}

func TestBookingService_Book_RefRetriesExhausted(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Return(domain.ErrDuplicateReference)

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "3C"})

	assert.ErrorIs(t, err, domain.ErrBookingFailed)
	assert.Nil(t, result)
	mockBookings.AssertNumberOfCalls(t, "Insert", maxRefAttempts)
}

func TestBookingService_Book_PublishFailureDoesNotFailBooking(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockProducer := &MockProducer{}

	service := NewBookingService(mockBookings, mockFlights, nil, mockProducer, "booking-events")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()
	mockProducer.On("Publish", ctx, "booking-events", mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "3C"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_Cancel_Success(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}

	service := NewBookingService(mockBookings, mockFlights, mockCache, mockProducer, "booking-events")

	ctx := context.Background()

	booked := &domain.Booking{
		ID:         1,
		BookingRef: "BK012007345",
		UserID:     12,
		FlightID:   7,
		Seat:       "3C",
		Fare:       2200.0,
		Status:     domain.BookingStatusBooked,
		CreatedAt:  time.Now().Add(-time.Hour),
	}

	mockBookings.On("GetByRef", ctx, "BK012007345", int64(12)).Return(booked, nil).Once()
	mockBookings.On("UpdateStatus", ctx, int64(1), domain.BookingStatusBooked, domain.BookingStatusCanceled).Return(true, nil).Once()
	mockCache.On("ReleaseSeatLock", ctx, int64(7), "3C").Return(nil).Once()
	mockProducer.On("Publish", ctx, "booking-events", "BK012007345", mock.Anything).Return(nil).Once()

	result, err := service.Cancel(ctx, "BK012007345", 12)

	assert.NoError(t, err)
	assert.False(t, result.AlreadyCanceled)
	assert.Equal(t, domain.BookingStatusCanceled, result.Booking.Status)
	// Canceled one hour after creation: half refund.
	assert.Equal(t, 1100.0, result.Refund)

	mockBookings.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_Cancel_FullRefundAfter48Hours(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	booked := &domain.Booking{
		ID:         1,
		BookingRef: "BK012007345",
		UserID:     12,
		FlightID:   7,
		Seat:       "3C",
		Fare:       2200.0,
		Status:     domain.BookingStatusBooked,
		CreatedAt:  time.Now().Add(-49 * time.Hour),
	}

	mockBookings.On("GetByRef", ctx, "BK012007345", int64(12)).Return(booked, nil).Once()
	mockBookings.On("UpdateStatus", ctx, int64(1), domain.BookingStatusBooked, domain.BookingStatusCanceled).Return(true, nil).Once()

	result, err := service.Cancel(ctx, "BK012007345", 12)

	assert.NoError(t, err)
	assert.Equal(t, 2200.0, result.Refund)
}

func TestBookingService_Cancel_AlreadyCanceled(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	canceled := &domain.Booking{
		ID:         1,
		BookingRef: "BK012007345",
		UserID:     12,
		FlightID:   7,
		Seat:       "3C",
		Fare:       2200.0,
		Status:     domain.BookingStatusCanceled,
		CreatedAt:  time.Now().Add(-time.Hour),
	}

	mockBookings.On("GetByRef", ctx, "BK012007345", int64(12)).Return(canceled, nil).Once()

	result, err := service.Cancel(ctx, "BK012007345", 12)

	assert.NoError(t, err)
	assert.True(t, result.AlreadyCanceled)
	assert.Equal(t, 0.0, result.Refund)
	mockBookings.AssertNotCalled(t, "UpdateStatus")
}

func TestBookingService_Cancel_NotFound(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockBookings.On("GetByRef", ctx, "BK999", int64(12)).Return(nil, domain.ErrBookingNotFound).Once()

	result, err := service.Cancel(ctx, "BK999", 12)

	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	assert.Nil(t, result)
}

func TestBookingService_Cancel_LostRace(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	booked := &domain.Booking{
		ID:         1,
		BookingRef: "BK012007345",
		UserID:     12,
		FlightID:   7,
		Seat:       "3C",
		Fare:       2200.0,
		Status:     domain.BookingStatusBooked,
		CreatedAt:  time.Now().Add(-time.Hour),
	}

	// The conditional update did not apply: a concurrent cancel got
	// there first. No refund is computed here.
	mockBookings.On("GetByRef", ctx, "BK012007345", int64(12)).Return(booked, nil).Once()
	mockBookings.On("UpdateStatus", ctx, int64(1), domain.BookingStatusBooked, domain.BookingStatusCanceled).Return(false, nil).Once()

	result, err := service.Cancel(ctx, "BK012007345", 12)

	assert.NoError(t, err)
	assert.True(t, result.AlreadyCanceled)
	assert.Equal(t, 0.0, result.Refund)
}

func TestBookingService_Cancel_InvalidStoredFareLeavesBookingBooked(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	corrupted := &domain.Booking{
		ID:         1,
		BookingRef: "BK012007345",
		UserID:     12,
		FlightID:   7,
		Seat:       "3C",
		Fare:       -50.0,
		Status:     domain.BookingStatusBooked,
		CreatedAt:  time.Now().Add(-time.Hour),
	}

	mockBookings.On("GetByRef", ctx, "BK012007345", int64(12)).Return(corrupted, nil).Once()

	result, err := service.Cancel(ctx, "BK012007345", 12)

	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Nil(t, result)
	// The refund failed before the status change, so the row stays BOOKED.
	mockBookings.AssertNotCalled(t, "UpdateStatus")
}

func TestBookingService_Cancel_LockReleaseFailureDoesNotFailCancel(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}
	mockCache := &MockCache{}

	service := NewBookingService(mockBookings, mockFlights, mockCache, nil, "")

	ctx := context.Background()

	booked := &domain.Booking{
		ID:         1,
		BookingRef: "BK012007345",
		UserID:     12,
		FlightID:   7,
		Seat:       "3C",
		Fare:       2200.0,
		Status:     domain.BookingStatusBooked,
		CreatedAt:  time.Now().Add(-time.Hour),
	}

	mockBookings.On("GetByRef", ctx, "BK012007345", int64(12)).Return(booked, nil).Once()
	mockBookings.On("UpdateStatus", ctx, int64(1), domain.BookingStatusBooked, domain.BookingStatusCanceled).Return(true, nil).Once()
	mockCache.On("ReleaseSeatLock", ctx, int64(7), "3C").Return(errors.New("redis down")).Once()

	result, err := service.Cancel(ctx, "BK012007345", 12)

	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCanceled, result.Booking.Status)
	assert.Equal(t, 1100.0, result.Refund)
	mockCache.AssertExpectations(t)
}

func TestBookingService_CancelThenRebookSameSeat(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	booked := &domain.Booking{
		ID:         1,
		BookingRef: "BK012007345",
		UserID:     12,
		FlightID:   7,
		Seat:       "3C",
		Fare:       2200.0,
		Status:     domain.BookingStatusBooked,
		CreatedAt:  time.Now().Add(-time.Hour),
	}

	mockBookings.On("GetByRef", ctx, "BK012007345", int64(12)).Return(booked, nil).Once()
	mockBookings.On("UpdateStatus", ctx, int64(1), domain.BookingStatusBooked, domain.BookingStatusCanceled).Return(true, nil).Once()

	cancelResult, err := service.Cancel(ctx, "BK012007345", 12)
	assert.NoError(t, err)
	assert.False(t, cancelResult.AlreadyCanceled)

	// The canceled booking no longer holds the seat, so another user can
	// take 3C.
	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Run(func(args mock.Arguments) {
		b := args.Get(1).(*domain.Booking)
		b.ID = 2
		b.CreatedAt = time.Now()
	}).Return(nil).Once()

	bookResult, err := service.Book(ctx, BookInput{UserID: 34, FlightID: 7, Seat: "3C"})

	assert.NoError(t, err)
	assert.Equal(t, "3C", bookResult.Booking.Seat)
	assert.Equal(t, domain.BookingStatusBooked, bookResult.Booking.Status)
	mockBookings.AssertExpectations(t)
}

func TestBookingService_SeatMap(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	flight := testFlight()
	flight.TotalSeats = 8

	mockFlights.On("GetByID", ctx, int64(7)).Return(flight, nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{"1B": {}}, nil).Once()

	rows, err := service.SeatMap(ctx, 7)

	assert.NoError(t, err)
	assert.Equal(t, [][]string{
		{"1A", "X", "1C", "1D", "1E", "1F"},
		{"2A", "2B"},
	}, rows)
}

func TestBookingService_NoCache(t *testing.T) {
	mockBookings := &MockBookingRepository{}
	mockFlights := &MockFlightRepository{}

	service := NewBookingService(mockBookings, mockFlights, nil, nil, "")

	ctx := context.Background()

	mockFlights.On("GetByID", ctx, int64(7)).Return(testFlight(), nil).Once()
	mockBookings.On("TakenSeats", ctx, int64(7)).Return(map[string]struct{}{}, nil).Once()
	mockBookings.On("Insert", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()

	result, err := service.Book(ctx, BookInput{UserID: 12, FlightID: 7, Seat: "1A"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockBookings.AssertExpectations(t)
}
