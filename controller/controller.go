// Package controller runs the mount's command protocol.
//
// A Controller owns all mutable mount state. Every trigger (a datagram, the
// guide pulse timer, a slew speed update, a beacon tick) takes the same lock
// and recomputes the drive outputs before releasing it.
package controller

import (
	"errors"
	"log"
	"net/netip"
	"sync"
	"time"

	"github.com/w1xm/eqmount/drive"
	"github.com/w1xm/eqmount/internal/metrics"
	"github.com/w1xm/eqmount/mount"
	"github.com/w1xm/eqmount/protocol"
)

var (
	ErrSlewing    = errors.New("slew in progress")
	ErrNotSlewing = errors.New("not slewing")
	ErrGuiding    = errors.New("pulse guide in progress")
	ErrDirection  = errors.New("invalid guide direction")
	ErrDuration   = errors.New("negative pulse duration")
)

// Sender sends a datagram. *net.UDPConn implements it.
type Sender interface {
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
}

type Config struct {
	Drive drive.Config
	// Title is shown on the first display row, usually "ip:port".
	Title string

	Slew    mount.SlewEngine
	Encoder mount.Encoder
	Motors  mount.DriveSink
	// Display may be nil.
	Display mount.DisplaySink
	Metrics *metrics.Collector
	// StatusCallback is called with the lock held after every change and
	// must not call back into the Controller.
	StatusCallback mount.StatusCallback
}

type Controller struct {
	cfg Config

	// afterFunc arms the pulse guide timer and returns its stop function.
	afterFunc func(d time.Duration, f func()) func() bool

	mu   sync.Mutex
	conn Sender

	tracking      mount.TrackingMode
	guiding       mount.GuideDirection
	raSpeed       mount.Rate
	decSpeed      mount.Rate
	raGuideSpeed  mount.Rate
	decGuideSpeed mount.Rate
	sideOfPier    mount.SideOfPier

	stopPulse func() bool
	pulseGen  uint64
	pulseFrom netip.AddrPort

	lastForward [2]bool
	outputs     [2]mount.AxisOutput
	display     mount.Display
}

func New(cfg Config) *Controller {
	return &Controller{
		cfg: cfg,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		raGuideSpeed:  mount.DefaultGuideRate,
		decGuideSpeed: mount.DefaultGuideRate,
		lastForward:   [2]bool{true, true},
	}
}

// SetSender sets the connection acknowledgements are sent on.
func (c *Controller) SetSender(conn Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// Recompute reapplies the drive outputs for the current state.
func (c *Controller) Recompute() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recompute()
}

// Handle processes one request datagram from the given sender and always
// replies with an ack. It reports whether the request was accepted.
func (c *Controller) Handle(b []byte, from netip.AddrPort) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := protocol.Decode(b)
	op := req.Op.String()
	if errors.Is(err, protocol.ErrEmpty) || errors.Is(err, protocol.ErrUnknownOpcode) {
		op = "unknown"
	}
	if err == nil {
		err = c.apply(req, from)
	}
	if err != nil {
		log.Printf("rejected %s from %v: %v", op, from, err)
	}
	c.cfg.Metrics.Command(op, err == nil)
	c.sendAck(from)
	return err == nil
}

func (c *Controller) apply(req protocol.Request, from netip.AddrPort) error {
	slewing := c.cfg.Slew.IsSlewing()
	switch req.Op {
	case protocol.Ping:
		log.Printf("ping from %v", from)
	case protocol.SetTracking:
		if slewing {
			return ErrSlewing
		}
		c.tracking = req.Tracking
		c.recompute()
		log.Printf("setTracking: %s", trackingDescr(c.tracking))
	case protocol.SetRaSpeed:
		if slewing {
			return ErrSlewing
		}
		c.raSpeed = mount.ClampRate(req.Speed)
		c.recompute()
		log.Printf("setRaSpeed: %.4f r/d", c.raSpeed.Cycles())
	case protocol.SetDecSpeed:
		if slewing {
			return ErrSlewing
		}
		c.decSpeed = mount.ClampRate(req.Speed)
		c.recompute()
		log.Printf("setDecSpeed: %.4f r/d", c.decSpeed.Cycles())
	case protocol.PulseGuide:
		return c.startPulse(req.Direction, req.DurationMillis, from, slewing)
	case protocol.SetRaGuideSpeed:
		c.raGuideSpeed = mount.ClampRate(req.Speed)
		c.recompute()
		log.Printf("setRaGuideSpeed: %.4f r/d", c.raGuideSpeed.Cycles())
	case protocol.SetDecGuideSpeed:
		c.decGuideSpeed = mount.ClampRate(req.Speed)
		c.recompute()
		log.Printf("setDecGuideSpeed: %.4f r/d", c.decGuideSpeed.Cycles())
	case protocol.SyncToTarget:
		if slewing {
			return ErrSlewing
		}
		// The mount may have crossed the pole since the last status read.
		c.angles()
		mech := mount.SkyToMechanical(req.Dec, c.sideOfPier)
		c.cfg.Encoder.SetAngles(req.RA, mech)
		_, c.sideOfPier = mount.MechanicalToSky(mech)
		c.notify()
		log.Printf("syncTo: %d, %d", req.RA, req.Dec)
	case protocol.SlewToTarget:
		if slewing {
			return ErrSlewing
		}
		if c.guiding != mount.GuideNone {
			return ErrGuiding
		}
		c.angles()
		c.cfg.Slew.SlewTo(req.RA, mount.SkyToMechanical(req.Dec, c.sideOfPier))
		c.recompute()
		log.Printf("slewTo: %d, %d", req.RA, req.Dec)
	case protocol.AbortSlew:
		if !slewing {
			return ErrNotSlewing
		}
		c.cfg.Slew.AbortSlew()
		log.Printf("abortSlew")
	case protocol.SetSideOfPier:
		if slewing {
			return ErrSlewing
		}
		// The mount does not move: keep the sky angle and rewrite the
		// mechanical angle for the new side.
		ra, mech := c.cfg.Encoder.Angles()
		sky, _ := mount.MechanicalToSky(mech)
		c.sideOfPier = req.SideOfPier
		c.cfg.Encoder.SetAngles(ra, mount.SkyToMechanical(sky, c.sideOfPier))
		c.notify()
		log.Printf("setSideOfPier: %v", c.sideOfPier)
	}
	return nil
}

func trackingDescr(t mount.TrackingMode) string {
	switch {
	case t > 0:
		return "YES/N"
	case t < 0:
		return "YES/S"
	}
	return "NO"
}

// SlewSpeeds is the slew engine's speed callback. Rates are in rotations per
// reference day.
func (c *Controller) SlewSpeeds(raCycles, decCycles float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raSpeed = mount.RateFromCycles(raCycles)
	c.decSpeed = mount.RateFromCycles(decCycles)
	c.recompute()
}

func (c *Controller) recompute() {
	var progress drive.SlewProgress
	if c.cfg.Slew.IsSlewing() {
		progress = drive.SlewProgress{
			Slewing:        true,
			Progress:       c.cfg.Slew.Progress(),
			TimeToGoMillis: c.cfg.Slew.TimeToGoMillis(),
		}
	}
	res := drive.Compute(c.cfg.Drive, drive.Input{
		Title:         c.cfg.Title,
		RaSpeed:       c.raSpeed,
		DecSpeed:      c.decSpeed,
		RaGuideSpeed:  c.raGuideSpeed,
		DecGuideSpeed: c.decGuideSpeed,
		Tracking:      c.tracking,
		Guiding:       c.guiding,
		LastForward:   c.lastForward,
		Slew:          progress,
	})
	c.display = res.Display
	if c.cfg.Display != nil {
		c.cfg.Display.Show(res.Display)
	}
	for _, axis := range []mount.Axis{mount.RA, mount.Dec} {
		out := res.Output(axis)
		if out != c.outputs[axis] {
			if out.Enabled {
				log.Printf("%v freq: %d", axis, out.FrequencyHz)
			} else {
				log.Printf("%v stop", axis)
			}
		}
		c.outputs[axis] = out
		c.lastForward[axis] = out.Forward
		c.cfg.Motors.Apply(axis, out)
	}
	c.notify()
}

func (c *Controller) ack() protocol.Ack {
	return protocol.Ack{
		Tracking:      c.tracking,
		PulseGuiding:  c.guiding,
		RaSpeed:       c.raSpeed,
		DecSpeed:      c.decSpeed,
		RaGuideSpeed:  c.raGuideSpeed,
		DecGuideSpeed: c.decGuideSpeed,
	}
}

func (c *Controller) sendAck(to netip.AddrPort) {
	if c.conn == nil {
		log.Printf("ack to %v: no connection", to)
		return
	}
	if _, err := c.conn.WriteToUDPAddrPort(c.ack().Encode(), to); err != nil {
		log.Printf("ack to %v: %v", to, err)
		c.cfg.Metrics.SendError("ack")
	}
}

// angles reads the sky frame position and reclassifies the side of pier
// from the mechanical declination.
func (c *Controller) angles() (ra, dec mount.AngleMillis) {
	ra, mech := c.cfg.Encoder.Angles()
	dec, c.sideOfPier = mount.MechanicalToSky(mech)
	return ra, dec
}

func (c *Controller) status() mount.Status {
	ra, dec := c.angles()
	return mount.Status{
		Tracking:      c.tracking,
		PulseGuiding:  c.guiding,
		RaSpeed:       c.raSpeed,
		DecSpeed:      c.decSpeed,
		RaGuideSpeed:  c.raGuideSpeed,
		DecGuideSpeed: c.decGuideSpeed,
		SideOfPier:    c.sideOfPier,
		Slewing:       c.cfg.Slew.IsSlewing(),
		RaAngle:       ra,
		DecAngle:      dec,
		Display:       c.display,
	}
}

func (c *Controller) notify() {
	if c.cfg.StatusCallback != nil {
		c.cfg.StatusCallback(c.status())
	}
}

// Status returns a snapshot of the mount state.
func (c *Controller) Status() mount.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status()
}

// Beacon returns the discovery record advertising addr.
func (c *Controller) Beacon(addr netip.AddrPort) protocol.Beacon {
	c.mu.Lock()
	defer c.mu.Unlock()
	ra, dec := c.angles()
	return protocol.Beacon{
		Addr:       addr,
		RA:         ra,
		Dec:        dec,
		Slewing:    c.cfg.Slew.IsSlewing(),
		Tracking:   c.tracking,
		RaSpeed:    c.raSpeed,
		DecSpeed:   c.decSpeed,
		SideOfPier: c.sideOfPier,
	}
}
