// Package modbusdrive drives the axis step generators of a Modbus stepper
// controller.
//
// Register map, per axis (RA first, DEC second):
//
//	coil 2*axis          enable
//	coil 2*axis+1        direction (on is forward)
//	holding 3*axis..+1   step frequency in Hz, high word first
//	holding 3*axis+2     duty cycle
//	discrete input axis  fault
package modbusdrive

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	goburrow "github.com/goburrow/modbus"
	"github.com/w1xm/eqmount/internal/modbus"
	"github.com/w1xm/eqmount/mount"
)

// pollInterval paces status reads while no outputs are pending.
const pollInterval = 100 * time.Millisecond

type Status struct {
	Connected bool    `json:"connected"`
	Faults    [2]bool `json:"faults"`
}

type StatusCallback func(status Status)

type Drive struct {
	statusCallback StatusCallback
	client         *modbus.Client

	mu      sync.Mutex
	outputs [2]mount.AxisOutput
	dirty   [2]bool
	status  Status
	wake    chan struct{}
}

type Config struct {
	Port     string
	BaudRate int
	SlaveId  byte
	URL      string
	Password string
}

func Connect(ctx context.Context, cfg Config, statusCallback StatusCallback) *Drive {
	d := newDrive(statusCallback)
	d.client = &modbus.Client{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		SlaveId:  cfg.SlaveId,
		URL:      cfg.URL,
		Password: cfg.Password,
		Poll:     d.pollOnce,
	}
	d.client.Connect(ctx)
	return d
}

func newDrive(statusCallback StatusCallback) *Drive {
	return &Drive{
		statusCallback: statusCallback,
		// Everything is written on the first connection.
		dirty: [2]bool{true, true},
		wake:  make(chan struct{}, 1),
	}
}

// Apply queues out for the next poll. It never blocks on the bus.
func (d *Drive) Apply(axis mount.Axis, out mount.AxisOutput) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.outputs[axis] == out && !d.dirty[axis] {
		return
	}
	d.outputs[axis] = out
	d.dirty[axis] = true
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Drive) pollOnce(c goburrow.Client) error {
	if err := d.poll(c); err != nil {
		d.disconnected()
		return err
	}
	select {
	case <-d.wake:
	case <-time.After(pollInterval):
	}
	return nil
}

func (d *Drive) poll(c goburrow.Client) error {
	if err := d.flush(c); err != nil {
		return err
	}
	results, err := c.ReadDiscreteInputs(0, 2)
	if err != nil {
		return err
	}
	faults := modbus.BytesToBits(results)
	if len(faults) < 2 {
		return fmt.Errorf("short fault read: %x", results)
	}
	status := Status{
		Connected: true,
		Faults:    [2]bool{faults[0], faults[1]},
	}
	if d.setStatus(status) && (status.Faults[0] || status.Faults[1]) {
		log.Printf("drive faults: RA %v, DEC %v", status.Faults[0], status.Faults[1])
	}
	return nil
}

// disconnected forces a full rewrite once the bus is back.
func (d *Drive) disconnected() {
	d.mu.Lock()
	d.dirty = [2]bool{true, true}
	d.mu.Unlock()
	d.setStatus(Status{})
}

func (d *Drive) setStatus(status Status) bool {
	d.mu.Lock()
	changed := status != d.status
	d.status = status
	d.mu.Unlock()
	if changed {
		d.notifyStatus(status)
	}
	return changed
}

func (d *Drive) notifyStatus(status Status) {
	if d.statusCallback != nil {
		d.statusCallback(status)
	}
}

// flush writes every pending axis output.
func (d *Drive) flush(c goburrow.Client) error {
	for _, axis := range []mount.Axis{mount.RA, mount.Dec} {
		d.mu.Lock()
		out, dirty := d.outputs[axis], d.dirty[axis]
		d.dirty[axis] = false
		d.mu.Unlock()
		if !dirty {
			continue
		}
		if err := writeAxis(c, axis, out); err != nil {
			return fmt.Errorf("writing %v: %w", axis, err)
		}
	}
	return nil
}

func writeAxis(c goburrow.Client, axis mount.Axis, out mount.AxisOutput) error {
	// Disable first so a stopped axis never sees a new frequency.
	if !out.Enabled {
		_, err := c.WriteSingleCoil(uint16(2*axis), modbus.CoilValue(false))
		return err
	}
	regs := make([]byte, 6)
	binary.BigEndian.PutUint32(regs, uint32(out.FrequencyHz))
	binary.BigEndian.PutUint16(regs[4:], uint16(out.Duty))
	if _, err := c.WriteMultipleRegisters(uint16(3*axis), 3, regs); err != nil {
		return err
	}
	_, err := c.WriteMultipleCoils(uint16(2*axis), 2, modbus.BitsToBytes([]bool{true, out.Forward}))
	return err
}

func (d *Drive) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
