package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nvoronina/flightbooking/internal/domain"
)

// SearchCriteria filters the flight list. Empty fields are skipped;
// src and dst match case-insensitively, DepartDate matches the exact
// calendar date.
type SearchCriteria struct {
	Src        string
	Dst        string
	DepartDate *time.Time
}

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, criteria SearchCriteria) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, flight_no, src, dst, depart_date, depart_time, duration_minutes, base_fare, total_seats`

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY depart_date, depart_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFlights(rows)
}

func (r *PGFlightRepository) Search(ctx context.Context, criteria SearchCriteria) ([]domain.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE ($1 = '' OR LOWER(src) = LOWER($1)) AND ($2 = '' OR LOWER(dst) = LOWER($2)) AND ($3::date IS NULL OR depart_date = $3) ORDER BY depart_date, depart_time`
	rows, err := r.db.Query(ctx, query, criteria.Src, criteria.Dst, criteria.DepartDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFlights(rows)
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id)
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNo, &f.Src, &f.Dst, &f.DepartDate, &f.DepartTime, &f.DurationMinutes, &f.BaseFare, &f.TotalSeats); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlightNotFound
		}
		return nil, err
	}
	return &f, nil
}

func scanFlights(rows pgx.Rows) ([]domain.Flight, error) {
	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := rows.Scan(&f.ID, &f.FlightNo, &f.Src, &f.Dst, &f.DepartDate, &f.DepartTime, &f.DurationMinutes, &f.BaseFare, &f.TotalSeats); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

var _ FlightRepository = (*PGFlightRepository)(nil)
