package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		limit      int
	}{
		{"cpu bound", 1.0, 0},
		{"io bound", 2.0, 0},
		{"limited", 2.0, 2},
		{"tiny multiplier", 0.1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < 1 {
				t.Errorf("Count(%v, %d) = %d, want >= 1", tt.multiplier, tt.limit, got)
			}
			if tt.limit > 0 && got > tt.limit {
				t.Errorf("Count(%v, %d) = %d, exceeds limit", tt.multiplier, tt.limit, got)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	t.Setenv("IO_WORKERS", "3")

	if got := Count(1.0, 0); got != 3 {
		t.Errorf("Count with IO_WORKERS=3 = %d, want 3", got)
	}
	if got := Count(1.0, 2); got != 2 {
		t.Errorf("Count with IO_WORKERS=3 and limit 2 = %d, want 2", got)
	}
}

func TestCountInvalidOverride(t *testing.T) {
	t.Setenv("IO_WORKERS", "not-a-number")

	got := Count(1.0, 0)
	if got != runtime.GOMAXPROCS(0) {
		t.Errorf("Count with invalid override = %d, want %d", got, runtime.GOMAXPROCS(0))
	}
}

func TestHelpers(t *testing.T) {
	if ForCPU(0) < 1 {
		t.Error("ForCPU returned < 1")
	}
	if ForIO(0) < ForCPU(0) {
		t.Error("ForIO should be >= ForCPU")
	}
}
