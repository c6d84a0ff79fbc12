package controller

import (
	"log"
	"net/netip"
	"time"

	"github.com/w1xm/eqmount/mount"
)

// startPulse moves from idle to an active pulse. The offset takes effect
// immediately; pulseFinished removes it and acks the requester.
func (c *Controller) startPulse(dir mount.GuideDirection, millis int16, from netip.AddrPort, slewing bool) error {
	if slewing {
		return ErrSlewing
	}
	if c.guiding != mount.GuideNone {
		return ErrGuiding
	}
	if !dir.Valid() {
		return ErrDirection
	}
	if millis < 0 {
		return ErrDuration
	}
	c.guiding = dir
	c.recompute()
	c.pulseFrom = from
	c.pulseGen++
	gen := c.pulseGen
	c.stopPulse = c.afterFunc(time.Duration(millis)*time.Millisecond, func() { c.pulseFinished(gen) })
	c.cfg.Metrics.GuidePulse(dir.String())
	log.Printf("pulseGuide: %v in %dms", dir, millis)
	return nil
}

func (c *Controller) pulseFinished(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.pulseGen || c.guiding == mount.GuideNone {
		// Cancelled by Stop.
		return
	}
	c.guiding = mount.GuideNone
	c.stopPulse = nil
	c.recompute()
	log.Printf("pulseGuide finished")
	c.sendAck(c.pulseFrom)
}

// Stop cancels a pending pulse without acknowledging it and removes its
// offset.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopPulse == nil {
		return
	}
	c.stopPulse()
	c.stopPulse = nil
	c.pulseGen++
	c.guiding = mount.GuideNone
	c.recompute()
}
