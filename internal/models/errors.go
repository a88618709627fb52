package models

import "errors"

var (
	ErrSeatNotFound            = errors.New("invalid seat selection: some seats not found")
	ErrSeatAlreadyReserved     = errors.New("reservation failed: one or more seats already taken")
	ErrTooManySeats            = errors.New("cannot purchase more than the allowed number of seats")
	ErrNoSeats                 = errors.New("seat_ids required")
	ErrDuplicateSeat           = errors.New("seat ids must be distinct")
	ErrEventNotFound           = errors.New("event not found or has been deleted")
	ErrOrderNotFound           = errors.New("order not found")
	ErrSessionInvalid          = errors.New("invalid or expired session")
	ErrForbidden               = errors.New("permission denied")
	ErrInvalidStatusTransition = errors.New("cancelled orders cannot be reactivated")
	ErrInvalidEvent            = errors.New("invalid event definition")
	ErrInvalidStatusFilter     = errors.New("status must be 0 (cancelled), 1 (active) or 2 (all)")
	ErrIntegrityViolation      = errors.New("integrity constraint violated")
)

var businessErrors = []error{
	ErrSeatNotFound,
	ErrSeatAlreadyReserved,
	ErrTooManySeats,
	ErrNoSeats,
	ErrDuplicateSeat,
	ErrEventNotFound,
	ErrOrderNotFound,
	ErrSessionInvalid,
	ErrForbidden,
	ErrInvalidStatusTransition,
	ErrInvalidEvent,
	ErrInvalidStatusFilter,
}

// IsBusinessError reports whether err is an expected outcome (bad input or lost
// contention) rather than a malfunction. Callers should not retry these.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
