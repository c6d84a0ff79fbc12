// Package simulator is a software mount. It integrates the drive outputs
// into axis angles and runs slews, so mountd can run without hardware.
package simulator

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/w1xm/eqmount/mount"
)

const (
	// Maximum slew rate in rotations per day
	maxSlew = 30
	// Maximum slew acceleration in rotations per day per second
	maxAccel = 10
	// Slew rate per degree of remaining travel
	slewGain = 100
	// A slew ends when both axes are closer than this, in degrees
	arrival = 0.05
	// Discrete simulation step size
	stepSize = 25 * time.Millisecond
)

type Simulator struct {
	// Speedup scales simulated time. Zero means real time.
	Speedup float64

	mu       sync.Mutex
	callback mount.SpeedCallback
	// Mechanical axis positions in rotations, in [0, 1).
	pos     [2]float64
	outputs [2]mount.AxisOutput

	slewing  bool
	target   [2]float64
	distance float64
	// Commanded slew speeds in rotations per day.
	speeds [2]float64
	// Speeds last reported to the callback.
	reported [2]float64
}

func New() *Simulator {
	return &Simulator{}
}

// OnSpeeds sets the callback that receives slew speeds. It is called from
// Run without the simulator lock held, every step while slewing and once
// more when the speeds change.
func (s *Simulator) OnSpeeds(cb mount.SpeedCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

func (s *Simulator) Apply(axis mount.Axis, out mount.AxisOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[axis] = out
}

func toAngle(rot float64) mount.AngleMillis {
	return mount.NormalizeAngle(int64(math.Round(rot * float64(mount.FullRotation))))
}

func toRotations(a mount.AngleMillis) float64 {
	return float64(mount.NormalizeAngle(int64(a))) / float64(mount.FullRotation)
}

func (s *Simulator) Angles() (ra, decMech mount.AngleMillis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toAngle(s.pos[mount.RA]), toAngle(s.pos[mount.Dec])
}

func (s *Simulator) SetAngles(ra, decMech mount.AngleMillis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = [2]float64{toRotations(ra), toRotations(decMech)}
}

func (s *Simulator) IsSlewing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slewing
}

// remaining returns the shortest signed move per axis, in degrees.
func (s *Simulator) remaining() [2]float64 {
	var r [2]float64
	for i := range r {
		r[i] = math.Remainder(s.target[i]-s.pos[i], 1) * 360
	}
	return r
}

func (s *Simulator) remainingDistance() float64 {
	r := s.remaining()
	return math.Max(math.Abs(r[0]), math.Abs(r[1]))
}

func (s *Simulator) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.slewing || s.distance == 0 {
		return 0
	}
	p := 1 - s.remainingDistance()/s.distance
	if p < 0 {
		return 0
	}
	return p
}

// TimeToGoMillis estimates the rest of the slew at full speed.
func (s *Simulator) TimeToGoMillis() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.slewing {
		return 0
	}
	rot := s.remainingDistance() / 360
	return int(rot / maxSlew * mount.SiderealDayMillis)
}

func (s *Simulator) SlewTo(ra, decMech mount.AngleMillis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = [2]float64{toRotations(ra), toRotations(decMech)}
	s.slewing = true
	s.distance = s.remainingDistance()
	log.Printf("sim: slewing %.2f°", s.distance)
}

func (s *Simulator) AbortSlew() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slewing = false
	s.speeds = [2]float64{}
	log.Printf("sim: slew aborted")
}

func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(stepSize)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		dt := stepSize
		if s.Speedup > 0 {
			dt = time.Duration(float64(dt) * s.Speedup)
		}
		s.step(dt)
	}
}

// posServo returns a target speed for the given move in degrees
func posServo(move float64) float64 {
	v := math.Abs(move) * slewGain
	if v > maxSlew {
		v = maxSlew
	}
	if move < 0 {
		v = -v
	}
	return v
}

// velServo returns an actual speed for the given current and target speed
func velServo(s, t float64, dt time.Duration) float64 {
	delta := math.Abs(t - s)
	if limit := maxAccel * dt.Seconds(); delta > limit {
		delta = limit
	}
	if t < s {
		delta = -delta
	}
	return s + delta
}

// dayMillis is the reference day of each axis rate.
var dayMillis = [2]float64{mount.RA: mount.SiderealDayMillis, mount.Dec: mount.SolarDayMillis}

func (s *Simulator) step(dt time.Duration) {
	s.mu.Lock()
	for i, out := range s.outputs {
		if !out.Enabled {
			continue
		}
		s.pos[i] = math.Mod(s.pos[i]+out.Cycles*float64(dt.Milliseconds())/dayMillis[i]+1, 1)
	}
	if s.slewing {
		r := s.remaining()
		if math.Abs(r[0]) < arrival && math.Abs(r[1]) < arrival {
			s.slewing = false
			s.speeds = [2]float64{}
			log.Printf("sim: slew complete")
		} else {
			for i := range s.speeds {
				s.speeds[i] = velServo(s.speeds[i], posServo(r[i]), dt)
			}
		}
	}
	cb := s.callback
	speeds := s.speeds
	// Progress moves every step of a slew, even at constant speed.
	report := s.slewing || speeds != s.reported
	s.reported = speeds
	s.mu.Unlock()

	if report && cb != nil {
		cb(speeds[0], speeds[1])
	}
}
