package mount

import (
	"testing"
)

func TestClampRate(t *testing.T) {
	for _, test := range []struct {
		in, want Rate
	}{
		{300000, 300000},
		{450000, 450000},
		{450001, 450000},
		{2000000, 450000},
		{150, 150},
		{149, 0},
		{50, 0},
		{0, 0},
		{-50, 0},
		{-149, 0},
		{-150, -150},
		{-300000, -300000},
		{-450001, -450000},
	} {
		if got := ClampRate(test.in); got != test.want {
			t.Errorf("ClampRate(%d) = %d, want %d", test.in, got, test.want)
		}
		if got := ClampRate(ClampRate(test.in)); got != test.want {
			t.Errorf("ClampRate is not idempotent for %d: got %d", test.in, got)
		}
	}
}

func TestDeadZone(t *testing.T) {
	for r := -MinRate + 1; r < MinRate; r++ {
		if got := ClampRate(r); got != 0 {
			t.Fatalf("ClampRate(%d) = %d, want 0", r, got)
		}
	}
}

func TestRateFromCycles(t *testing.T) {
	if got := RateFromCycles(1.5); got != 22500 {
		t.Errorf("RateFromCycles(1.5) = %d", got)
	}
	if got := RateFromCycles(-0.00001); got != 0 {
		t.Errorf("RateFromCycles(-0.00001) = %d, want truncation to 0", got)
	}
}

func TestTrackingLabel(t *testing.T) {
	for mode, want := range map[TrackingMode]string{0: "   ", 1: "T/N", 100: "T/N", -1: "T/W"} {
		if got := mode.Label(); got != want {
			t.Errorf("TrackingMode(%d).Label() = %q, want %q", mode, got, want)
		}
	}
}
