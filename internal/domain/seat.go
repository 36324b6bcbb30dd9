package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Seat identifiers follow the venue layout convention: section letter,
// row number, dash, seat number. "A1-5" is section A, row 1, seat 5.
var seatIDPattern = regexp.MustCompile(`^([A-Z])(\d{1,3})-(\d{1,3})$`)

type Seat struct {
	ID         string
	Section    string
	Row        int
	Number     int
	Tier       string
	Accessible bool
}

// ParseSeatID validates a seat identifier and splits it into its parts.
func ParseSeatID(id string) (Seat, error) {
	m := seatIDPattern.FindStringSubmatch(id)
	if m == nil {
		return Seat{}, fmt.Errorf("malformed seat id %q: %w", id, ErrInvalidInput)
	}
	row, _ := strconv.Atoi(m[2])
	number, _ := strconv.Atoi(m[3])
	return Seat{
		ID:      id,
		Section: m[1],
		Row:     row,
		Number:  number,
	}, nil
}

// ValidateSeatIDs checks every id in the batch and reports the first bad one.
func ValidateSeatIDs(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("no seats requested: %w", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, err := ParseSeatID(id); err != nil {
			return err
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate seat id %q: %w", id, ErrInvalidInput)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (s Seat) String() string {
	return strings.Join([]string{s.Section + strconv.Itoa(s.Row), strconv.Itoa(s.Number)}, "-")
}
