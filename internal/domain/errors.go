// Package domain holds the core types and the sentinel errors shared
// across repositories, services and handlers. Higher layers match the
// sentinels with errors.Is to pick user-facing messages and HTTP status
// codes.
package domain

import "errors"

var (
	ErrFlightNotFound  = errors.New("flight not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")

	// Seat label validation failures.
	ErrInvalidSeatFormat = errors.New("invalid seat format")
	ErrSeatOutOfRange    = errors.New("seat number out of range")

	// ErrSeatTaken is returned both by the advisory pre-check and by the
	// store when the partial unique index rejects a concurrent insert.
	ErrSeatTaken = errors.New("seat already taken")

	// ErrDuplicateReference is a booking_ref collision. The booking
	// service retries with a fresh reference and only surfaces
	// ErrBookingFailed once the retry budget is spent.
	ErrDuplicateReference = errors.New("duplicate booking reference")
	ErrBookingFailed      = errors.New("could not allocate booking reference")

	ErrInvalidAmount = errors.New("invalid amount")

	ErrUsernameTaken      = errors.New("username already exists")
	ErrUsernameRequired   = errors.New("username cannot be empty")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid username or password")
)
