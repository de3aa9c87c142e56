package jobs

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 30 * time.Second, Max: time.Hour}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, 1 * time.Minute},
		{3, 2 * time.Minute},
		{4, 4 * time.Minute},
		{5, 8 * time.Minute},
		{6, 16 * time.Minute},
		{7, 32 * time.Minute},
		{8, time.Hour}, // 64m capped
		{20, time.Hour},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_Delay_ClampsAttemptBelowOne(t *testing.T) {
	b := Backoff{Initial: 30 * time.Second, Max: time.Hour}
	if got := b.Delay(0); got != 30*time.Second {
		t.Errorf("Delay(0) = %v, want 30s", got)
	}
	if got := b.Delay(-5); got != 30*time.Second {
		t.Errorf("Delay(-5) = %v, want 30s", got)
	}
}

func TestBackoff_Delay_OverflowReturnsMax(t *testing.T) {
	b := Backoff{Initial: 30 * time.Second, Max: time.Hour}
	// Large enough exponent to overflow a time.Duration.
	if got := b.Delay(200); got != time.Hour {
		t.Errorf("Delay(200) = %v, want %v", got, time.Hour)
	}
}
