// Package metrics exposes Prometheus counters for the mount controller.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the controller's metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Commands    *prometheus.CounterVec
	GuidePulses *prometheus.CounterVec
	Beacons     prometheus.Counter
	SendErrors  *prometheus.CounterVec
}

// New registers the metrics against reg, defaulting to the global registry
// when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mount_commands_total",
		Help: "Datagrams handled, labeled by opcode and result (ok or rejected).",
	}, []string{"opcode", "result"}))
	if err != nil {
		return nil, err
	}
	pulses, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mount_guide_pulses_total",
		Help: "Guide pulses started, labeled by direction.",
	}, []string{"direction"}))
	if err != nil {
		return nil, err
	}
	beacons, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mount_beacons_total",
		Help: "Discovery beacons sent.",
	}))
	if err != nil {
		return nil, err
	}
	sendErrors, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mount_send_errors_total",
		Help: "Failed datagram sends, labeled by kind (ack or beacon).",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:    gatherer,
		Commands:    commands,
		GuidePulses: pulses,
		Beacons:     beacons,
		SendErrors:  sendErrors,
	}, nil
}

func (c *Collector) Command(opcode string, ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	c.Commands.WithLabelValues(opcode, result).Inc()
}

func (c *Collector) GuidePulse(direction string) {
	if c == nil {
		return
	}
	c.GuidePulses.WithLabelValues(direction).Inc()
}

func (c *Collector) Beacon() {
	if c == nil {
		return
	}
	c.Beacons.Inc()
}

func (c *Collector) SendError(kind string) {
	if c == nil {
		return
	}
	c.SendErrors.WithLabelValues(kind).Inc()
}

// Handler serves the collector's gatherer.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}
