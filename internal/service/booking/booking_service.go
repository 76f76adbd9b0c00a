package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nvoronina/flightbooking/internal/domain"
	"github.com/nvoronina/flightbooking/internal/fare"
	"github.com/nvoronina/flightbooking/internal/kafka"
	"github.com/nvoronina/flightbooking/internal/repository"
	"github.com/nvoronina/flightbooking/internal/seatmap"
)

// maxRefAttempts bounds the regenerate-and-retry loop on booking
// reference collisions before Book gives up with ErrBookingFailed.
const maxRefAttempts = 5

type BookingUseCase interface {
	Book(ctx context.Context, input BookInput) (*BookResult, error)
	Cancel(ctx context.Context, ref string, userID int64) (*CancelResult, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetail, error)
	SeatMap(ctx context.Context, flightID int64) ([][]string, error)
}

// Cache provides advisory seat locks. They narrow the race window for
// friendlier errors; the store's unique index is what actually prevents
// double booking.
type Cache interface {
	AcquireSeatLock(ctx context.Context, flightID int64, seat string, ttl time.Duration) (bool, error)
	ReleaseSeatLock(ctx context.Context, flightID int64, seat string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookInput struct {
	UserID   int64  `json:"user_id"`
	FlightID int64  `json:"flight_id"`
	Seat     string `json:"seat"`
}

type BookResult struct {
	Booking *domain.Booking
	Fare    fare.Breakdown
}

type CancelResult struct {
	Booking *domain.Booking
	Refund  float64
	// AlreadyCanceled reports that the booking was canceled before this
	// call. It is informational, not an error; no state changed and no
	// refund was computed.
	AlreadyCanceled bool
}

type BookingService struct {
	bookings     repository.BookingRepository
	flights      repository.FlightRepository
	cache        Cache
	producer     Producer
	bookingTopic string
	lockTTL      time.Duration
}

type BookingServiceOption func(*BookingService)

func WithSeatLockTTL(ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.lockTTL = ttl
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	cache Cache,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		flights:      flights,
		cache:        cache,
		producer:     producer,
		bookingTopic: bookingTopic,
		lockTTL:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Book reserves a seat on a flight for the user and persists the
// booking in status BOOKED. The taken-seat pre-check and the Redis lock
// are advisory; a concurrent claim of the same seat is rejected by the
// store and surfaces as ErrSeatTaken.
func (s *BookingService) Book(ctx context.Context, input BookInput) (*BookResult, error) {
	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}

	seat := strings.ToUpper(strings.TrimSpace(input.Seat))
	if err := seatmap.ValidateLabel(seat, flight.TotalSeats); err != nil {
		return nil, err
	}

	taken, err := s.bookings.TakenSeats(ctx, flight.ID)
	if err != nil {
		return nil, err
	}
	if _, ok := taken[seat]; ok {
		return nil, domain.ErrSeatTaken
	}

	breakdown, err := fare.Total(flight.BaseFare)
	if err != nil {
		return nil, err
	}

	locked := false
	if s.cache != nil {
		ok, err := s.cache.AcquireSeatLock(ctx, flight.ID, seat, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrSeatTaken
		}
		locked = true
	}

	booking, err := s.insertWithRetry(ctx, input.UserID, flight.ID, seat, breakdown.Total)
	if locked {
		if relErr := s.cache.ReleaseSeatLock(ctx, flight.ID, seat); relErr != nil {
			log.Printf("WARNING: release seat lock for flight %d seat %s: %v", flight.ID, seat, relErr)
		}
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "booking_created", booking, 0)
	return &BookResult{Booking: booking, Fare: breakdown}, nil
}

func (s *BookingService) insertWithRetry(ctx context.Context, userID, flightID int64, seat string, total float64) (*domain.Booking, error) {
	for attempt := 0; attempt < maxRefAttempts; attempt++ {
		booking := &domain.Booking{
			BookingRef: newBookingRef(userID, flightID),
			UserID:     userID,
			FlightID:   flightID,
			Seat:       seat,
			Fare:       total,
			Status:     domain.BookingStatusBooked,
		}
		err := s.bookings.Insert(ctx, booking)
		if err == nil {
			return booking, nil
		}
		if errors.Is(err, domain.ErrDuplicateReference) {
			continue
		}
		return nil, err
	}
	return nil, domain.ErrBookingFailed
}

// newBookingRef derives a human-readable reference from the user and
// flight plus a random suffix. The suffix only reduces collision
// probability; uniqueness is enforced by the store and collisions are
// retried.
func newBookingRef(userID, flightID int64) string {
	return fmt.Sprintf("BK%03d%03d%03d", userID, flightID, rand.Intn(900)+100)
}

// Cancel transitions the user's booking to CANCELED and computes the
// refund from the stored fare and creation time. Canceling an already
// canceled booking is a no-op reported through AlreadyCanceled.
func (s *BookingService) Cancel(ctx context.Context, ref string, userID int64) (*CancelResult, error) {
	booking, err := s.bookings.GetByRef(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	if booking.Status == domain.BookingStatusCanceled {
		return &CancelResult{Booking: booking, AlreadyCanceled: true}, nil
	}

	// Compute the refund before touching the row so a bad stored fare
	// leaves the booking in status BOOKED.
	refund, err := fare.Refund(booking.Fare, booking.CreatedAt, time.Now())
	if err != nil {
		return nil, err
	}

	applied, err := s.bookings.UpdateStatus(ctx, booking.ID, domain.BookingStatusBooked, domain.BookingStatusCanceled)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent cancellation won the conditional update.
		booking.Status = domain.BookingStatusCanceled
		return &CancelResult{Booking: booking, AlreadyCanceled: true}, nil
	}

	booking.Status = domain.BookingStatusCanceled
	if s.cache != nil {
		if relErr := s.cache.ReleaseSeatLock(ctx, booking.FlightID, booking.Seat); relErr != nil {
			log.Printf("WARNING: release seat lock for flight %d seat %s: %v", booking.FlightID, booking.Seat, relErr)
		}
	}
	s.publish(ctx, "booking_canceled", booking, refund)
	return &CancelResult{Booking: booking, Refund: refund}, nil
}

func (s *BookingService) ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetail, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// SeatMap renders the flight's seat grid with seats held by active
// bookings replaced by the taken marker.
func (s *BookingService) SeatMap(ctx context.Context, flightID int64) ([][]string, error) {
	flight, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	taken, err := s.bookings.TakenSeats(ctx, flight.ID)
	if err != nil {
		return nil, err
	}
	return seatmap.Rows(flight.TotalSeats, taken), nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking, refund float64) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		BookingRef: booking.BookingRef,
		UserID:     booking.UserID,
		FlightID:   booking.FlightID,
		Seat:       booking.Seat,
		Fare:       booking.Fare,
		Refund:     refund,
		Status:     string(booking.Status),
		CreatedAt:  booking.CreatedAt,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.BookingRef, event); err != nil {
		log.Printf("WARNING: failed to publish %s event for booking %s: %v", eventType, booking.BookingRef, err)
	}
}

var _ BookingUseCase = (*BookingService)(nil)
