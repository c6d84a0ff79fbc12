package controller

import (
	"context"
	"log"
	"net/netip"
	"time"

	"github.com/w1xm/eqmount/internal/metrics"
)

const DefaultBeaconInterval = 1 * time.Second

// Broadcaster periodically advertises the controller on a range of ports.
type Broadcaster struct {
	Controller *Controller
	Conn       Sender
	// Advertise is the address clients should send commands to.
	Advertise netip.AddrPort
	// Dest defaults to the limited broadcast address.
	Dest      netip.Addr
	PortStart uint16
	PortCount int
	// Interval defaults to DefaultBeaconInterval.
	Interval time.Duration
	Metrics  *metrics.Collector
}

func (b *Broadcaster) Run(ctx context.Context) error {
	interval := b.Interval
	if interval <= 0 {
		interval = DefaultBeaconInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		b.Tick()
	}
}

// Tick sends one beacon to every port in the range. Failures are logged and
// dropped.
func (b *Broadcaster) Tick() {
	dest := b.Dest
	if !dest.IsValid() {
		dest = netip.AddrFrom4([4]byte{255, 255, 255, 255})
	}
	data := b.Controller.Beacon(b.Advertise).Encode()
	for i := 0; i < b.PortCount; i++ {
		to := netip.AddrPortFrom(dest, b.PortStart+uint16(i))
		if _, err := b.Conn.WriteToUDPAddrPort(data, to); err != nil {
			log.Printf("beacon to %v: %v", to, err)
			b.Metrics.SendError("beacon")
			continue
		}
	}
	b.Metrics.Beacon()
}
