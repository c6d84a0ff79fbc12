// Package display renders the mount's status text.
package display

import (
	"bytes"
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/w1xm/eqmount/mount"
)

// Columns is the width of the character display.
const Columns = 20

// Render formats d for a character display: form feed, then the title and
// the three status lines padded or cut to Columns.
func Render(d mount.Display) []byte {
	var b bytes.Buffer
	b.WriteByte('\f')
	for i, line := range append([]string{d.Title}, d.Lines[:]...) {
		if i > 0 {
			b.WriteString("\r\n")
		}
		if len(line) > Columns {
			line = line[:Columns]
		}
		b.WriteString(line)
		for n := len(line); n < Columns; n++ {
			b.WriteByte(' ')
		}
	}
	return b.Bytes()
}

// LCD drives a serial character display. Frames are written from a
// background goroutine, so Show never blocks on the port.
type LCD struct {
	mu      sync.Mutex
	frame   mount.Display
	w       io.Writer
	updated chan struct{}
}

func OpenLCD(ctx context.Context, port string, baud int) *LCD {
	l := newLCD()
	go l.reconnectLoop(ctx, port, baud)
	return l
}

func newLCD() *LCD {
	return &LCD{updated: make(chan struct{}, 1)}
}

func (l *LCD) reconnectLoop(ctx context.Context, port string, baud int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}
		c := &serial.Config{Name: port, Baud: baud}
		s, err := serial.OpenPort(c)
		if err != nil {
			log.Printf("opening %q: %v", port, err)
			continue
		}
		log.Printf("opened %q", port)
		if err := l.process(ctx, s); err != nil {
			log.Printf("writing %q: %v", port, err)
		}
		s.Close()
	}
}

// process writes the current frame, then every update, until ctx is done or
// a write fails.
func (l *LCD) process(ctx context.Context, w io.Writer) error {
	for {
		select {
		case <-l.updated:
		default:
		}
		l.mu.Lock()
		frame := l.frame
		l.mu.Unlock()
		if _, err := w.Write(Render(frame)); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-l.updated:
		}
	}
}

func (l *LCD) Show(d mount.Display) {
	l.mu.Lock()
	changed := d != l.frame
	l.frame = d
	l.mu.Unlock()
	if !changed {
		return
	}
	select {
	case l.updated <- struct{}{}:
	default:
	}
}

// Multi shows every frame on all of its sinks.
type Multi []mount.DisplaySink

func (m Multi) Show(d mount.Display) {
	for _, s := range m {
		if s != nil {
			s.Show(d)
		}
	}
}

// Discard drops every frame.
var Discard mount.DisplaySink = discard{}

type discard struct{}

func (discard) Show(mount.Display) {}

// Log prints each new frame's status line.
type Log struct {
	mu   sync.Mutex
	last string
}

func (l *Log) Show(d mount.Display) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d.Lines[2] == l.last {
		return
	}
	l.last = d.Lines[2]
	log.Printf("display: %q", l.last)
}
