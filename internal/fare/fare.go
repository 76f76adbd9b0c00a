// Package fare computes booking totals and refunds. Amounts are
// float64 currency values rounded to two decimal places, half away
// from zero; the same rounding is applied everywhere money is produced.
package fare

import (
	"math"
	"time"

	"github.com/nvoronina/flightbooking/internal/domain"
)

const (
	// TaxRate is applied to the base fare.
	TaxRate = 0.05

	// ServiceFee is a flat per-booking charge.
	ServiceFee = 100.0

	// FullRefundAfter is the booking age beyond which a cancellation
	// refunds the full fare. At or below it, half is refunded; the
	// boundary itself is exclusive.
	FullRefundAfter = 48 * time.Hour
)

type Breakdown struct {
	Base  float64
	Tax   float64
	Fee   float64
	Total float64
}

// Total computes the amount paid for a flight with the given base fare:
// base plus 5% tax plus the flat service fee, each rounded to cents.
func Total(baseFare float64) (Breakdown, error) {
	if !validAmount(baseFare) {
		return Breakdown{}, domain.ErrInvalidAmount
	}
	b := Breakdown{
		Base: round2(baseFare),
		Tax:  round2(baseFare * TaxRate),
		Fee:  round2(ServiceFee),
	}
	b.Total = round2(baseFare + baseFare*TaxRate + ServiceFee)
	return b, nil
}

// Refund returns the amount returned to the user when a booking created
// at createdAt is canceled at now: the full fare when the booking is
// strictly older than FullRefundAfter, otherwise half.
func Refund(farePaid float64, createdAt, now time.Time) (float64, error) {
	if !validAmount(farePaid) {
		return 0, domain.ErrInvalidAmount
	}
	if now.Sub(createdAt) > FullRefundAfter {
		return round2(farePaid), nil
	}
	return round2(farePaid * 0.5), nil
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
