// Package seatmap generates deterministic seat labels for a flight and
// renders the taken/free grid. Seats are laid out row-major in rows of
// six columns labeled A through F; the last row may be partial. All
// functions are pure.
package seatmap

import (
	"errors"
	"strconv"

	"github.com/nvoronina/flightbooking/internal/domain"
)

const (
	SeatsPerRow = 6

	// TakenMarker replaces the label of a seat held by an active booking.
	TakenMarker = "X"
)

// Labels returns the seat labels for a flight with totalSeats seats, in
// row-major order. The label of seat ordinal n is "{row}{column}" with
// row = ceil(n/6) and column = 'A' + (n-1) mod 6.
func Labels(totalSeats int) []string {
	labels := make([]string, 0, totalSeats)
	for n := 1; n <= totalSeats; n++ {
		labels = append(labels, label(n))
	}
	return labels
}

func label(ordinal int) string {
	row := (ordinal-1)/SeatsPerRow + 1
	col := byte('A' + (ordinal-1)%SeatsPerRow)
	return strconv.Itoa(row) + string(col)
}

// Rows renders the seat map as rows of cells. A cell is the seat label
// when the seat is free and TakenMarker when it appears in taken. The
// last row is truncated when totalSeats is not a multiple of six.
func Rows(totalSeats int, taken map[string]struct{}) [][]string {
	rows := make([][]string, 0, (totalSeats+SeatsPerRow-1)/SeatsPerRow)
	var row []string
	for n := 1; n <= totalSeats; n++ {
		l := label(n)
		if _, ok := taken[l]; ok {
			l = TakenMarker
		}
		row = append(row, l)
		if len(row) == SeatsPerRow || n == totalSeats {
			rows = append(rows, row)
			row = nil
		}
	}
	return rows
}

// ValidateLabel checks a candidate seat label against the flight size.
// It returns domain.ErrInvalidSeatFormat when the label has no leading
// digits and domain.ErrSeatOutOfRange when the numeric part is outside
// [1, totalSeats]. The letter suffix is deliberately not validated, so
// "1Z" passes on any flight with at least one seat.
func ValidateLabel(seat string, totalSeats int) error {
	i := 0
	for i < len(seat) && seat[i] >= '0' && seat[i] <= '9' {
		i++
	}
	if i == 0 {
		return domain.ErrInvalidSeatFormat
	}
	num, err := strconv.Atoi(seat[:i])
	if err != nil {
		// A digit run too large for int is still a well-formed label,
		// just far past any flight's capacity.
		if errors.Is(err, strconv.ErrRange) {
			return domain.ErrSeatOutOfRange
		}
		return domain.ErrInvalidSeatFormat
	}
	if num < 1 || num > totalSeats {
		return domain.ErrSeatOutOfRange
	}
	return nil
}
