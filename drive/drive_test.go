package drive

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/eqmount/mount"
)

func TestCompute(t *testing.T) {
	cfg := DefaultConfig()
	reversed := DefaultConfig()
	reversed.RA.Reverse = true
	reversed.Dec.Reverse = true

	stopped := func(forward bool) mount.AxisOutput { return mount.AxisOutput{Forward: forward} }

	for _, test := range []struct {
		name    string
		cfg     Config
		in      Input
		ra, dec mount.AxisOutput
	}{
		{
			name: "idle",
			cfg:  cfg,
			in:   Input{LastForward: [2]bool{true, false}},
			ra:   stopped(true),
			dec:  stopped(false),
		},
		{
			name: "tracking",
			cfg:  cfg,
			in:   Input{Tracking: 1},
			ra:   mount.AxisOutput{Enabled: true, Forward: true, FrequencyHz: 10, Duty: Duty, Cycles: 1},
			dec:  stopped(false),
		},
		{
			// Reverse tracking still adds +1 rotation/day; only the label differs.
			name: "reverse tracking label only",
			cfg:  cfg,
			in:   Input{Tracking: -1},
			ra:   mount.AxisOutput{Enabled: true, Forward: true, FrequencyHz: 10, Duty: Duty, Cycles: 1},
			dec:  stopped(false),
		},
		{
			name: "guide north",
			cfg:  cfg,
			in:   Input{Guiding: mount.GuideNorth, RaGuideSpeed: 7500, DecGuideSpeed: 7500},
			ra:   stopped(false),
			dec:  mount.AxisOutput{Enabled: true, Forward: true, FrequencyHz: 5, Duty: Duty, Cycles: 0.5},
		},
		{
			name: "guide south",
			cfg:  cfg,
			in:   Input{Guiding: mount.GuideSouth, DecGuideSpeed: 7500, LastForward: [2]bool{true, true}},
			ra:   stopped(true),
			dec:  mount.AxisOutput{Enabled: true, Forward: false, FrequencyHz: 5, Duty: Duty, Cycles: -0.5},
		},
		{
			name: "guide east against tracking",
			cfg:  cfg,
			in:   Input{Tracking: 1, Guiding: mount.GuideEast, RaGuideSpeed: 7500},
			ra:   mount.AxisOutput{Enabled: true, Forward: true, FrequencyHz: 5, Duty: Duty, Cycles: 0.5},
			dec:  stopped(false),
		},
		{
			name: "guide west with tracking",
			cfg:  cfg,
			in:   Input{Tracking: 1, Guiding: mount.GuideWest, RaGuideSpeed: 7500},
			ra:   mount.AxisOutput{Enabled: true, Forward: true, FrequencyHz: 16, Duty: Duty, Cycles: 1.5},
			dec:  stopped(false),
		},
		{
			name: "reversed",
			cfg:  reversed,
			in:   Input{RaSpeed: 15000, DecSpeed: -15000},
			ra:   mount.AxisOutput{Enabled: true, Forward: false, FrequencyHz: 10, Duty: Duty, Cycles: 1},
			dec:  mount.AxisOutput{Enabled: true, Forward: true, FrequencyHz: 10, Duty: Duty, Cycles: -1},
		},
		{
			name: "clamped to max",
			cfg:  cfg,
			in:   Input{Tracking: 1, RaSpeed: 450000, DecSpeed: -450000},
			ra:   mount.AxisOutput{Enabled: true, Forward: true, FrequencyHz: 320, Duty: Duty, Cycles: 30},
			dec:  mount.AxisOutput{Enabled: true, Forward: false, FrequencyHz: 320, Duty: Duty, Cycles: -30},
		},
		{
			name: "frequency rounds to zero",
			cfg:  cfg,
			in:   Input{DecSpeed: 1000, LastForward: [2]bool{false, false}},
			ra:   stopped(false),
			dec:  stopped(false),
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got := Compute(test.cfg, test.in)
			if diff := cmp.Diff(test.ra, got.RA); diff != "" {
				t.Errorf("unexpected RA output: want(-)/got(+):\n%s", diff)
			}
			if diff := cmp.Diff(test.dec, got.Dec); diff != "" {
				t.Errorf("unexpected DEC output: want(-)/got(+):\n%s", diff)
			}
		})
	}
}

func TestComputeIdempotent(t *testing.T) {
	in := Input{Tracking: 1, RaSpeed: 30000, DecSpeed: -7000, Guiding: mount.GuideNorth, DecGuideSpeed: 7500}
	first := Compute(DefaultConfig(), in)
	second := Compute(DefaultConfig(), in)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Compute is not idempotent:\n%s", diff)
	}
}

func TestDisplay(t *testing.T) {
	for _, test := range []struct {
		name string
		in   Input
		want mount.Display
	}{
		{
			name: "idle",
			in:   Input{Title: "10.0.0.5:6001"},
			want: mount.Display{
				Title: "10.0.0.5:6001",
				Lines: [3]string{
					"R.A.  +0.0000 r/d",
					"Dec   +0.0000 r/d",
					strings.Repeat(" ", 21),
				},
			},
		},
		{
			name: "tracking and guiding",
			in:   Input{Tracking: 1, Guiding: mount.GuideSouth, DecGuideSpeed: 7500},
			want: mount.Display{
				Lines: [3]string{
					"R.A.  +1.0000 r/d",
					"Dec   -0.5000 r/d",
					"G/S" + strings.Repeat(" ", 15) + "T/N",
				},
			},
		},
		{
			name: "reverse tracking",
			in:   Input{Tracking: -3, RaSpeed: 450000},
			want: mount.Display{
				Lines: [3]string{
					"R.A. +31.0000 r/d",
					"Dec   +0.0000 r/d",
					strings.Repeat(" ", 18) + "T/W",
				},
			},
		},
		{
			name: "slewing",
			in: Input{
				Tracking: 1,
				RaSpeed:  150000,
				Slew:     SlewProgress{Slewing: true, Progress: 0.505, TimeToGoMillis: 125400},
			},
			want: mount.Display{
				Lines: [3]string{
					"R.A. +11.0000 r/d",
					"Dec   +0.0000 r/d",
					"Slew 50% eta 02:05",
				},
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got := Compute(DefaultConfig(), test.in).Display
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected display: want(-)/got(+):\n%s", diff)
			}
		})
	}
}

func TestFrequency(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.RA.Frequency(1); got != 10 {
		t.Errorf("RA 1 r/d = %d Hz, want 10", got)
	}
	if got := cfg.Dec.Frequency(30); got != 320 {
		t.Errorf("DEC 30 r/d = %d Hz, want 320", got)
	}
}
