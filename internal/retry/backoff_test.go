package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},  // base * 2^0 = 100ms
		{1, 200 * time.Millisecond},  // base * 2^1 = 200ms
		{2, 400 * time.Millisecond},  // base * 2^2 = 400ms
		{3, 800 * time.Millisecond},  // base * 2^3 = 800ms
		{4, 1600 * time.Millisecond}, // base * 2^4 = 1600ms
	}

	for _, tt := range tests {
		result := ExponentialBackoff(tt.attempt, base)
		if result != tt.expected {
			t.Errorf("attempt %d: got %v, want %v", tt.attempt, result, tt.expected)
		}
	}
}

func TestExponentialBackoffWithDifferentBase(t *testing.T) {
	base := 1 * time.Second

	result := ExponentialBackoff(2, base)
	expected := 4 * time.Second

	if result != expected {
		t.Errorf("got %v, want %v", result, expected)
	}
}

func TestExponentialBackoffBounds(t *testing.T) {
	base := time.Millisecond

	if got := ExponentialBackoff(-3, base); got != base {
		t.Errorf("negative attempt: got %v, want %v", got, base)
	}
	if got, want := ExponentialBackoff(1000, base), ExponentialBackoff(maxShift, base); got != want {
		t.Errorf("huge attempt: got %v, want %v", got, want)
	}
	if got := ExponentialBackoff(1000, base); got <= 0 {
		t.Errorf("huge attempt overflowed: %v", got)
	}
}
