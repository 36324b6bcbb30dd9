package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending           BookingStatus = "pending"
	BookingConfirmed         BookingStatus = "confirmed"
	BookingRefunded          BookingStatus = "refunded"
	BookingPartiallyRefunded BookingStatus = "partially_refunded"
	BookingGuestList         BookingStatus = "guest_list"
	BookingCancelled         BookingStatus = "cancelled"
	BookingFailed            BookingStatus = "failed"
)

// bookingTransitions is the closed transition table. Anything not listed
// here is rejected with ErrStateConflict at the API boundary; there is no
// path out of a terminal status back to confirmed.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending: {BookingConfirmed, BookingCancelled, BookingFailed},
	BookingConfirmed: {
		BookingRefunded,
		BookingPartiallyRefunded,
		BookingGuestList,
		BookingCancelled,
		BookingFailed,
	},
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingRefunded,
		BookingPartiallyRefunded, BookingGuestList, BookingCancelled, BookingFailed:
		return true
	}
	return false
}

// Active reports whether the status blocks the seat for other buyers.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Refundable reports whether a selective refund may be applied.
func (s BookingStatus) Refundable() bool {
	return s == BookingConfirmed
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TerminalStatusForReason maps a full-order release reason to the terminal
// status the order's bookings move to.
func TerminalStatusForReason(reason string) (BookingStatus, bool) {
	switch reason {
	case "refunded":
		return BookingRefunded, true
	case "cancelled":
		return BookingCancelled, true
	case "failed":
		return BookingFailed, true
	}
	return "", false
}

// Booking is the durable seat-to-order association. OrderID zero marks a
// cart-stage placeholder that has not become a real order yet.
type Booking struct {
	ID             uuid.UUID
	OrderID        int64
	OrderItemID    int64
	EventID        uuid.UUID
	SeatID         string
	CustomerEmail  string
	Status         BookingStatus
	RefundID       string
	RefundedAmount float64
	RefundReason   string
	RefundDate     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
