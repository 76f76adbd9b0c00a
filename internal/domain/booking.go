package domain

import "time"

type BookingStatus string

const (
	BookingStatusBooked   BookingStatus = "BOOKED"
	BookingStatusCanceled BookingStatus = "CANCELED"
)

type Booking struct {
	ID         int64
	BookingRef string
	UserID     int64
	FlightID   int64
	Seat       string
	Fare       float64
	Status     BookingStatus
	CreatedAt  time.Time
}

// BookingDetail is a booking joined with the flight it was made on,
// as shown in a user's booking list.
type BookingDetail struct {
	Booking
	FlightNo   string
	Src        string
	Dst        string
	DepartDate time.Time
	DepartTime string
}
