// Package gpio drives step/direction/enable stepper drivers from the
// Raspberry Pi GPIO header. STEP is a hardware PWM channel.
package gpio

import (
	"fmt"
	"log"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
	"github.com/w1xm/eqmount/drive"
	"github.com/w1xm/eqmount/mount"
)

const (
	// pwmClock is the PWM clock in Hz. BCM 12 and 13 share it, so it is set
	// once and each channel's step frequency comes from its range register.
	pwmClock = 1000000
	// cycleLen is the period the drive duty is expressed against.
	cycleLen = 1 << drive.DutyResolutionBits
)

// Pin is the subset of rpio.Pin used here.
type Pin interface {
	Output()
	High()
	Low()
	Mode(mode rpio.Mode)
	Freq(freq int)
	DutyCycle(dutyLen, cycleLen uint32)
}

// AxisPins are BCM pin numbers. Step must be PWM capable.
type AxisPins struct {
	Enable, Dir, Step int
}

var DefaultPins = [2]AxisPins{
	mount.RA:  {Enable: 5, Dir: 6, Step: 12},
	mount.Dec: {Enable: 16, Dir: 26, Step: 13},
}

type axis struct {
	enable, dir, step Pin
}

type Drive struct {
	mu   sync.Mutex
	axes [2]axis
	last [2]mount.AxisOutput
}

// Open maps the GPIO registers and disables both drivers.
func Open(pins [2]AxisPins) (*Drive, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("opening gpio: %w", err)
	}
	var axes [2]axis
	for i, p := range pins {
		axes[i] = axis{rpio.Pin(p.Enable), rpio.Pin(p.Dir), rpio.Pin(p.Step)}
	}
	return newDrive(axes), nil
}

func newDrive(axes [2]axis) *Drive {
	d := &Drive{axes: axes}
	for i, a := range d.axes {
		a.enable.Output()
		// Enable is active low.
		a.enable.High()
		a.dir.Output()
		a.dir.High()
		a.step.Mode(rpio.Pwm)
		a.step.Freq(pwmClock)
		a.step.DutyCycle(0, cycleLen)
		d.last[i] = mount.AxisOutput{Forward: true}
	}
	return d
}

func (d *Drive) Apply(ax mount.Axis, out mount.AxisOutput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if out == d.last[ax] {
		return
	}
	a := d.axes[ax]
	if out.Forward {
		a.dir.High()
	} else {
		a.dir.Low()
	}
	if !out.Enabled {
		a.enable.High()
		a.step.DutyCycle(0, cycleLen)
	} else {
		a.step.DutyCycle(stepRange(out))
		a.enable.Low()
	}
	d.last[ax] = out
}

// stepRange returns the duty and range register values that produce
// out.FrequencyHz from pwmClock at out's duty.
func stepRange(out mount.AxisOutput) (dutyLen, rng uint32) {
	rng = uint32(pwmClock / out.FrequencyHz)
	dutyLen = uint32(uint64(rng) * uint64(out.Duty) / cycleLen)
	return dutyLen, rng
}

// Close disables both drivers and unmaps the GPIO registers.
func (d *Drive) Close() error {
	d.mu.Lock()
	for _, a := range d.axes {
		a.enable.High()
		a.step.DutyCycle(0, cycleLen)
	}
	d.mu.Unlock()
	log.Printf("gpio: drivers disabled")
	return rpio.Close()
}
