package controller

import (
	"context"
	"log"
	"net/netip"

	"golang.org/x/sync/errgroup"
)

// PacketConn is the subset of *net.UDPConn used by Serve.
type PacketConn interface {
	Sender
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	Close() error
}

// maxDatagram is larger than any request so oversized datagrams reach
// Decode intact and are rejected on length.
const maxDatagram = 1500

// Serve handles datagrams from conn in order until ctx is done or the
// connection fails. conn is closed on return.
func (c *Controller) Serve(ctx context.Context, conn PacketConn) error {
	c.SetSender(conn)
	c.Recompute()

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		// Wait for context to be canceled, then close connection.
		select {
		case <-ctx.Done():
		case <-done:
		}
		return conn.Close()
	})
	g.Go(func() error {
		defer close(done)
		buf := make([]byte, maxDatagram)
		for {
			n, from, err := conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("reading datagram: %v", err)
				return err
			}
			if n <= 0 {
				continue
			}
			c.Handle(buf[:n], from)
		}
	})
	return g.Wait()
}
