package email

import (
	"context"
	"fmt"

	"github.com/nvoronina/flightbooking/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	switch event.Type {
	case "booking_canceled":
		fmt.Printf("notify user %d: booking %s canceled, refund %.2f\n", event.UserID, event.BookingRef, event.Refund)
	default:
		fmt.Printf("notify user %d: booking %s confirmed, seat %s, paid %.2f\n", event.UserID, event.BookingRef, event.Seat, event.Fare)
	}
	return nil
}
