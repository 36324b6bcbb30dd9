package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// SelectiveRefundRecord is the append-only audit row linking one refund
// transaction to the seats it covered. Never mutated after insert.
type SelectiveRefundRecord struct {
	ID        uuid.UUID
	OrderID   int64
	RefundID  string
	SeatIDs   []string
	Amount    float64
	Reason    string
	CreatedAt time.Time
}

// PerSeatRefundAmount splits an order total evenly across its seats,
// rounded to cents. The flat split ignores pricing tiers on purpose: it
// matches the established refund behavior, questionable as that is for
// mixed-tier orders.
func PerSeatRefundAmount(orderTotal float64, seatCount int) float64 {
	if seatCount <= 0 {
		return 0
	}
	return math.Round(orderTotal/float64(seatCount)*100) / 100
}
