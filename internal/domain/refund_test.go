package domain

import "testing"

func TestPerSeatRefundAmount(t *testing.T) {
	cases := []struct {
		total float64
		seats int
		want  float64
	}{
		{100.0, 4, 25.0},
		{100.0, 3, 33.33},
		{0.0, 2, 0.0},
		{59.99, 2, 30.0},
		{10.0, 0, 0.0},
	}
	for _, c := range cases {
		if got := PerSeatRefundAmount(c.total, c.seats); got != c.want {
			t.Errorf("PerSeatRefundAmount(%v, %d) = %v, want %v", c.total, c.seats, got, c.want)
		}
	}
}
