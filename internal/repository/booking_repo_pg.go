package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nvoronina/flightbooking/internal/domain"
)

// Index names from migrations/001_init.sql; unique violations are mapped
// back to domain errors by constraint.
const (
	refConstraint  = "bookings_booking_ref_key"
	seatConstraint = "bookings_active_seat_idx"
)

type BookingRepository interface {
	// TakenSeats returns the seat labels held by BOOKED bookings on the
	// flight. Canceled bookings do not count.
	TakenSeats(ctx context.Context, flightID int64) (map[string]struct{}, error)

	// Insert persists a new booking. Uniqueness of the reference and of
	// (flight, seat) among active bookings is enforced here, not by the
	// caller's pre-checks; collisions surface as
	// domain.ErrDuplicateReference and domain.ErrSeatTaken.
	Insert(ctx context.Context, booking *domain.Booking) error

	GetByRef(ctx context.Context, ref string, userID int64) (*domain.Booking, error)

	// UpdateStatus transitions a booking from expected to next in one
	// conditional statement and reports whether the transition applied.
	UpdateStatus(ctx context.Context, bookingID int64, expected, next domain.BookingStatus) (bool, error)

	ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetail, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) TakenSeats(ctx context.Context, flightID int64) (map[string]struct{}, error) {
	rows, err := r.db.Query(ctx, `SELECT seat FROM bookings WHERE flight_id=$1 AND status=$2`, flightID, domain.BookingStatusBooked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taken := make(map[string]struct{})
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		taken[seat] = struct{}{}
	}
	return taken, rows.Err()
}

func (r *PGBookingRepository) Insert(ctx context.Context, booking *domain.Booking) error {
	row := r.db.QueryRow(ctx, `INSERT INTO bookings (booking_ref, user_id, flight_id, seat, fare, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`, booking.BookingRef, booking.UserID, booking.FlightID, booking.Seat, booking.Fare, booking.Status)
	if err := row.Scan(&booking.ID, &booking.CreatedAt); err != nil {
		switch {
		case isUniqueViolation(err, refConstraint):
			return domain.ErrDuplicateReference
		case isUniqueViolation(err, seatConstraint):
			return domain.ErrSeatTaken
		}
		return err
	}
	return nil
}

func (r *PGBookingRepository) GetByRef(ctx context.Context, ref string, userID int64) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT id, booking_ref, user_id, flight_id, seat, fare, status, created_at FROM bookings WHERE booking_ref=$1 AND user_id=$2`, ref, userID)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.BookingRef, &b.UserID, &b.FlightID, &b.Seat, &b.Fare, &b.Status, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, bookingID int64, expected, next domain.BookingStatus) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET status=$1 WHERE id=$2 AND status=$3`, next, bookingID, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.BookingDetail, error) {
	rows, err := r.db.Query(ctx, `SELECT b.id, b.booking_ref, b.user_id, b.flight_id, b.seat, b.fare, b.status, b.created_at,
			f.flight_no, f.src, f.dst, f.depart_date, f.depart_time
		FROM bookings b
		JOIN flights f ON b.flight_id = f.id
		WHERE b.user_id=$1 ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]domain.BookingDetail, 0)
	for rows.Next() {
		var d domain.BookingDetail
		if err := rows.Scan(&d.ID, &d.BookingRef, &d.UserID, &d.FlightID, &d.Seat, &d.Fare, &d.Status, &d.CreatedAt,
			&d.FlightNo, &d.Src, &d.Dst, &d.DepartDate, &d.DepartTime); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

var _ BookingRepository = (*PGBookingRepository)(nil)
