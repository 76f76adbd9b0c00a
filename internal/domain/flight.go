package domain

import "time"

type Flight struct {
	ID              int64
	FlightNo        string
	Src             string
	Dst             string
	DepartDate      time.Time // calendar date, time part is zero
	DepartTime      string    // local wall clock, HH:MM
	DurationMinutes int
	BaseFare        float64
	TotalSeats      int
}
