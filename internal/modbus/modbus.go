// Package modbus wraps a goburrow Modbus RTU client with a reconnect loop.
// The bus is either a local serial port or a remote bridge reached over
// HTTP.
package modbus

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/goburrow/modbus"
)

type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

type Client struct {
	// Port and BaudRate create a local serial connection
	Port string
	// BaudRate defaults to 19200
	BaudRate int
	SlaveId  byte
	// URL creates a remote connection through a bridge
	URL      string
	Password string

	// Poll is called in a loop while the connection is up. A returned
	// error drops the connection.
	Poll func(c modbus.Client) error

	handler handler
	client  modbus.Client
}

func (c *Client) newHandler() handler {
	if c.URL != "" {
		return NewHTTPHandler(c.URL, c.Password, c.SlaveId)
	}
	h := modbus.NewRTUClientHandler(c.Port)
	h.BaudRate = c.BaudRate
	if h.BaudRate == 0 {
		h.BaudRate = 19200
	}
	h.DataBits = 8
	h.Parity = "N"
	h.StopBits = 1
	h.Timeout = 1 * time.Second
	h.SlaveId = c.SlaveId
	return h
}

// Connect starts the reconnect loop. It returns immediately.
func (c *Client) Connect(ctx context.Context) {
	c.handler = c.newHandler()
	c.client = modbus.NewClient(c.handler)
	go c.reconnectLoop(ctx)
}

func (c *Client) name() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Port
}

func (c *Client) reconnectLoop(ctx context.Context) {
	port := c.name()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(1 * time.Second):
		}

		if err := c.handler.Connect(); err != nil {
			log.Printf("opening %q: %v", port, err)
			continue
		}
		log.Printf("opened %q", port)
		if err := c.watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("watching %q: %v", port, err)
		}
	}
}

func (c *Client) watch(ctx context.Context) error {
	defer c.handler.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.Poll(c.client); err != nil {
			return err
		}
	}
}

// CoilValue is the register value WriteSingleCoil expects.
func CoilValue(value bool) uint16 {
	if value {
		return 0xFF00
	}
	return 0
}

func BytesToBits(bs []byte) []bool {
	var out []bool
	for _, b := range bs {
		for i := 0; i < 8; i++ {
			out = append(out, (b>>uint(i)&1) == 1)
		}
	}
	return out
}

// BitsToBytes packs bits LSB first, the layout WriteMultipleCoils expects.
func BitsToBytes(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
