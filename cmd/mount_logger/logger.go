// Command mount_logger records mount state in InfluxDB, from discovery
// beacons and, when MOUNT_ADDRESS is set, from mountd's status feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/w1xm/eqmount/protocol"
	"golang.org/x/sync/errgroup"
)

var (
	beaconPort = flag.Int("beacon_port", 12346, "UDP port to receive beacons on")
	bucket     = flag.String("bucket", "mount.raw", "InfluxDB bucket")
)

func main() {
	flag.Parse()
	// Create client
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Get non-blocking write client
	writeApi := client.WriteApi("w1xm", *bucket)
	defer writeApi.Close()
	// Get errors channel
	errorsCh := writeApi.Errors()
	// Create go proc for reading and logging errors
	go func() {
		for err := range errorsCh {
			log.Printf("write error: %v", err)
		}
	}()

	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			if err := logBeacons(ctx, writeApi, *beaconPort); err != nil {
				log.Print(err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(1 * time.Second):
			}
		}
	})
	if url := os.Getenv("MOUNT_ADDRESS"); url != "" {
		g.Go(func() error {
			for {
				if err := logStatus(writeApi, url); err != nil {
					log.Print(err)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(1 * time.Second):
				}
			}
		})
	}
	log.Fatal(g.Wait())
}

func beaconFields(b protocol.Beacon) map[string]interface{} {
	return map[string]interface{}{
		"ra":           b.RA.Degrees(),
		"dec":          b.Dec.Degrees(),
		"slewing":      b.Slewing,
		"tracking":     int(b.Tracking),
		"ra_speed":     b.RaSpeed.Cycles(),
		"dec_speed":    b.DecSpeed.Cycles(),
		"side_of_pier": b.SideOfPier.String(),
	}
}

func logBeacons(ctx context.Context, writeApi api.WriteApi, port int) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return fmt.Errorf("listening on %d: %w", port, err)
	}
	defer conn.Close()
	defer closeOnDone(ctx, conn)()
	defer writeApi.Flush()
	buf := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return err
		}
		b, err := protocol.DecodeBeacon(buf[:n])
		if err != nil {
			log.Printf("beacon from %v: %v", from, err)
			continue
		}
		p := influxdb2.NewPoint("mount.beacon",
			map[string]string{"mount": b.Addr.String()},
			beaconFields(b),
			time.Now(),
		)
		// write asynchronously
		writeApi.WritePoint(p)
	}
}

// closeOnDone closes c when ctx is done. The returned stop func ends the
// watch and waits for it to exit.
func closeOnDone(ctx context.Context, c io.Closer) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			c.Close()
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func flattenStatus(fields map[string]interface{}, status interface{}, prefix string) {
	switch status := status.(type) {
	case map[string]interface{}:
		for k, v := range status {
			flattenStatus(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for k, v := range status {
			flattenStatus(fields, v, fmt.Sprintf("%s.%d", prefix, k))
		}
	default:
		fields[prefix[1:]] = status
	}
}

func logStatus(writeApi api.WriteApi, url string) error {
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		fields := make(map[string]interface{})
		flattenStatus(fields, status, "")

		p := influxdb2.NewPoint("mount.status",
			nil,
			fields,
			time.Now(),
		)
		writeApi.WritePoint(p)
	}
}
