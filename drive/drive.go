// Package drive converts commanded axis rates into stepper driver signals
// and the status display.
package drive

import (
	"fmt"
	"math"

	"github.com/w1xm/eqmount/mount"
)

const (
	// DutyResolutionBits is the pulse generator's duty resolution.
	DutyResolutionBits = 13
	// Duty is a fixed 50% duty cycle at DutyResolutionBits.
	Duty = ((1 << DutyResolutionBits) - 1) / 2

	DefaultMaxCycles = 30
	DefaultMinCycles = 0.01
)

// AxisConfig describes one stepper drive train.
type AxisConfig struct {
	StepsPerCycle float64
	GearRatio     float64
	Resolution    float64
	// Reverse inverts the direction line.
	Reverse bool

	MaxCycles float64
	MinCycles float64
	// DayMillis is the reference day length for this axis.
	DayMillis float64
}

// Frequency returns the step frequency for cycles rotations per reference day.
func (c AxisConfig) Frequency(cycles float64) int {
	return int(c.StepsPerCycle * c.GearRatio * c.Resolution * cycles * 1000 / c.DayMillis)
}

type Config struct {
	RA, Dec AxisConfig
}

// DefaultConfig matches a 200 step motor on a 144:1 worm at 32 microsteps.
func DefaultConfig() Config {
	axis := AxisConfig{
		StepsPerCycle: 200,
		GearRatio:     144,
		Resolution:    32,
		MaxCycles:     DefaultMaxCycles,
		MinCycles:     DefaultMinCycles,
	}
	c := Config{RA: axis, Dec: axis}
	c.RA.DayMillis = mount.SiderealDayMillis
	c.Dec.DayMillis = mount.SolarDayMillis
	return c
}

// SlewProgress is the slew engine's report at the time of recompute.
type SlewProgress struct {
	Slewing        bool
	Progress       float64
	TimeToGoMillis int
}

type Input struct {
	Title string

	RaSpeed, DecSpeed           mount.Rate
	RaGuideSpeed, DecGuideSpeed mount.Rate
	Tracking                    mount.TrackingMode
	Guiding                     mount.GuideDirection

	// LastForward is the direction line of each axis from the previous
	// recompute, held while an axis is disabled.
	LastForward [2]bool

	Slew SlewProgress
}

type Result struct {
	RA, Dec mount.AxisOutput
	Display mount.Display
}

// Output returns the output for axis.
func (r Result) Output(axis mount.Axis) mount.AxisOutput {
	if axis == mount.Dec {
		return r.Dec
	}
	return r.RA
}

// Compute derives drive signals from in. It has no state of its own.
func Compute(cfg Config, in Input) Result {
	ra := in.RaSpeed.Cycles()
	dec := in.DecSpeed.Cycles()

	switch in.Guiding {
	case mount.GuideNorth:
		dec += in.DecGuideSpeed.Cycles()
	case mount.GuideSouth:
		dec -= in.DecGuideSpeed.Cycles()
	case mount.GuideWest:
		ra += in.RaGuideSpeed.Cycles()
	case mount.GuideEast:
		ra -= in.RaGuideSpeed.Cycles()
	}

	if in.Tracking != 0 {
		ra++
	}

	return Result{
		RA:      axisOutput(cfg.RA, ra, in.LastForward[mount.RA]),
		Dec:     axisOutput(cfg.Dec, dec, in.LastForward[mount.Dec]),
		Display: display(in, ra, dec),
	}
}

func axisOutput(cfg AxisConfig, cycles float64, lastForward bool) mount.AxisOutput {
	forward := cycles >= 0
	if cfg.Reverse {
		forward = !forward
	}
	mag := math.Abs(cycles)
	stopped := mount.AxisOutput{Forward: lastForward}
	if mag < cfg.MinCycles {
		return stopped
	}
	if mag > cfg.MaxCycles {
		mag = cfg.MaxCycles
	}
	freq := cfg.Frequency(mag)
	if freq == 0 {
		return stopped
	}
	if cycles < 0 {
		mag = -mag
	}
	return mount.AxisOutput{
		Enabled:     true,
		Forward:     forward,
		FrequencyHz: freq,
		Duty:        Duty,
		Cycles:      mag,
	}
}

func display(in Input, ra, dec float64) mount.Display {
	d := mount.Display{Title: in.Title}
	d.Lines[0] = fmt.Sprintf("R.A. %+8.4f r/d", ra)
	d.Lines[1] = fmt.Sprintf("Dec  %+8.4f r/d", dec)
	if in.Slew.Slewing {
		progress := int(in.Slew.Progress * 100)
		toGo := in.Slew.TimeToGoMillis / 1000
		d.Lines[2] = fmt.Sprintf("Slew %d%% eta %02d:%02d", progress, toGo/60, toGo%60)
	} else {
		d.Lines[2] = fmt.Sprintf("%s               %s", in.Guiding.Label(), in.Tracking.Label())
	}
	return d
}

// Sinks applies every output to all of its drive sinks in order.
type Sinks []mount.DriveSink

func (s Sinks) Apply(axis mount.Axis, out mount.AxisOutput) {
	for _, sink := range s {
		sink.Apply(axis, out)
	}
}
