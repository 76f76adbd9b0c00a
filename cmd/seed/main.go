// Seed inserts sample flights when the flights table is empty. It is a
// separate binary so the store itself stays free of bootstrap logic.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nvoronina/flightbooking/config"
)

type seedFlight struct {
	flightNo        string
	src             string
	dst             string
	daysFromNow     int
	departTime      string
	durationMinutes int
	baseFare        float64
	totalSeats      int
}

var sampleFlights = []seedFlight{
	{"DG101", "Coimbatore", "Bengaluru", 3, "07:30", 90, 2000.0, 30},
	{"DG102", "Coimbatore", "Chennai", 2, "09:15", 65, 1800.0, 30},
	{"DG201", "Bengaluru", "Mumbai", 5, "13:00", 120, 3500.0, 40},
	{"DG301", "Chennai", "Hyderabad", 4, "17:45", 75, 2200.0, 30},
	{"DG401", "Coimbatore", "Kochi", 1, "06:00", 60, 1500.0, 20},
}

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM flights`).Scan(&count); err != nil {
		log.Fatalf("count flights: %v", err)
	}
	if count > 0 {
		log.Printf("flights table already has %d rows, nothing to do", count)
		return
	}

	today := time.Now().Truncate(24 * time.Hour)
	for _, f := range sampleFlights {
		departDate := today.AddDate(0, 0, f.daysFromNow)
		_, err := pool.Exec(ctx, `INSERT INTO flights (flight_no, src, dst, depart_date, depart_time, duration_minutes, base_fare, total_seats)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			f.flightNo, f.src, f.dst, departDate, f.departTime, f.durationMinutes, f.baseFare, f.totalSeats)
		if err != nil {
			log.Fatalf("insert flight %s: %v", f.flightNo, err)
		}
	}
	log.Printf("seeded %d flights", len(sampleFlights))
}
