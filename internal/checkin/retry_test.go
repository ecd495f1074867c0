package checkin

import (
	"context"
	"testing"
	"time"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		used, max int
		want      bool
	}{
		{0, 3, true},
		{2, 3, true},
		{3, 3, false},
		{5, 3, false},
		{0, 0, false},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.used, tc.max); got != tc.want {
			t.Errorf("ShouldRetry(%d, %d) = %v, want %v", tc.used, tc.max, got, tc.want)
		}
	}
}

func TestJitterStaysInBounds(t *testing.T) {
	min, max := 5*time.Millisecond, 10*time.Millisecond
	for i := 0; i < 100; i++ {
		d := jitter(min, max)
		if d < min || d > max {
			t.Fatalf("jitter = %v, want within [%v, %v]", d, min, max)
		}
	}
}

func TestJitterDegenerateRange(t *testing.T) {
	if d := jitter(0, 0); d != 0 {
		t.Errorf("jitter(0,0) = %v, want 0", d)
	}
	if d := jitter(7, 7); d != 7 {
		t.Errorf("jitter(7,7) = %v, want 7", d)
	}
}

func TestSleepInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSleepZeroReturnsImmediately(t *testing.T) {
	if err := sleep(context.Background(), 0); err != nil {
		t.Fatalf("sleep(0) = %v", err)
	}
}
