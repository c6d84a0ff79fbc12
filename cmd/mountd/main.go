// Command mountd runs the mount controller: the UDP command server, the
// discovery beacon and an HTTP status server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof"
	"net/netip"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/w1xm/eqmount/controller"
	"github.com/w1xm/eqmount/display"
	"github.com/w1xm/eqmount/drive"
	"github.com/w1xm/eqmount/gpio"
	"github.com/w1xm/eqmount/internal/metrics"
	"github.com/w1xm/eqmount/modbusdrive"
	"github.com/w1xm/eqmount/mount"
	"github.com/w1xm/eqmount/simulator"
	"golang.org/x/sync/errgroup"
)

var (
	port           = flag.Int("port", 12345, "UDP command port")
	httpAddr       = flag.String("http_addr", "127.0.0.1:8502", "address to serve status and metrics on")
	advertiseIP    = flag.String("advertise_ip", "", "IPv4 address to advertise; defaults to the first non-loopback address")
	beaconPort     = flag.Int("beacon_port", 12346, "first beacon port")
	beaconPorts    = flag.Int("beacon_ports", 4, "number of consecutive beacon ports")
	beaconInterval = flag.Duration("beacon_interval", controller.DefaultBeaconInterval, "beacon period")

	driveKind  = flag.String("drive", "sim", "drive hardware: sim, gpio or modbus")
	steps      = flag.Float64("steps", 200, "motor full steps per rotation")
	gearRatio  = flag.Float64("gear_ratio", 144, "worm gear ratio")
	microsteps = flag.Float64("microsteps", 32, "driver microstep resolution")
	reverseRA  = flag.Bool("reverse_ra", false, "invert the RA direction line")
	reverseDec = flag.Bool("reverse_dec", false, "invert the DEC direction line")
	simSpeedup = flag.Float64("sim_speedup", 1, "simulated time scale")

	modbusSerial   = flag.String("modbus_serial", "", "Modbus drive serial port name")
	modbusBaud     = flag.Int("modbus_baud", 19200, "Modbus drive baud rate")
	modbusURL      = flag.String("modbus_url", "", "Modbus bridge URL, instead of a serial port")
	modbusPassword = flag.String("modbus_password", "", "Modbus bridge password")
	modbusSlave    = flag.Int("modbus_slave", 1, "Modbus drive slave ID")

	lcdSerial = flag.String("lcd_serial", "", "character LCD serial port name")
	lcdBaud   = flag.Int("lcd_baud", 9600, "character LCD baud rate")
	logFrames = flag.Bool("log_display", true, "log display status line changes")
)

func driveConfig() drive.Config {
	cfg := drive.DefaultConfig()
	for _, axis := range []*drive.AxisConfig{&cfg.RA, &cfg.Dec} {
		axis.StepsPerCycle = *steps
		axis.GearRatio = *gearRatio
		axis.Resolution = *microsteps
	}
	cfg.RA.Reverse = *reverseRA
	cfg.Dec.Reverse = *reverseDec
	return cfg
}

// newDisplay fans frames out to sinks, or drops them if there are none.
func newDisplay(sinks ...mount.DisplaySink) mount.DisplaySink {
	switch len(sinks) {
	case 0:
		return display.Discard
	case 1:
		return sinks[0]
	}
	return display.Multi(sinks)
}

func localIPv4() (netip.Addr, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return netip.AddrFrom4([4]byte{ip4[0], ip4[1], ip4[2], ip4[3]}), nil
		}
	}
	return netip.Addr{}, errors.New("no IPv4 address")
}

func advertiseAddr() (netip.AddrPort, error) {
	var ip netip.Addr
	var err error
	if *advertiseIP != "" {
		ip, err = netip.ParseAddr(*advertiseIP)
	} else {
		ip, err = localIPv4()
	}
	if err != nil {
		return netip.AddrPort{}, err
	}
	if !ip.Is4() {
		return netip.AddrPort{}, fmt.Errorf("%v is not an IPv4 address", ip)
	}
	return netip.AddrPortFrom(ip, uint16(*port)), nil
}

// listenUDP retries until the socket is bound or ctx is done.
func listenUDP(ctx context.Context, laddr *net.UDPAddr) (*net.UDPConn, error) {
	for {
		conn, err := net.ListenUDP("udp4", laddr)
		if err == nil {
			log.Printf("listening on %v", conn.LocalAddr())
			return conn, nil
		}
		log.Printf("listening on %v: %v", laddr, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
}

func serve(ctx context.Context, c *controller.Controller) error {
	for {
		conn, err := listenUDP(ctx, &net.UDPAddr{Port: *port})
		if err != nil {
			return err
		}
		err = c.Serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("serving: %v", err)
	}
}

func broadcast(ctx context.Context, b *controller.Broadcaster) error {
	conn, err := listenUDP(ctx, &net.UDPAddr{})
	if err != nil {
		return err
	}
	defer conn.Close()
	b.Conn = conn
	return b.Run(ctx)
}

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	advertise, err := advertiseAddr()
	if err != nil {
		log.Fatalf("finding address to advertise: %v", err)
	}
	collector, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal(err)
	}
	server := NewServer()

	// The simulator also serves as encoder and slew engine for real
	// hardware, integrating the commanded outputs.
	sim := simulator.New()
	sim.Speedup = *simSpeedup
	sinks := drive.Sinks{sim}
	switch *driveKind {
	case "sim":
	case "gpio":
		pins, err := gpio.Open(gpio.DefaultPins)
		if err != nil {
			log.Fatal(err)
		}
		defer pins.Close()
		sinks = append(sinks, pins)
	case "modbus":
		sinks = append(sinks, modbusdrive.Connect(ctx, modbusdrive.Config{
			Port:     *modbusSerial,
			BaudRate: *modbusBaud,
			SlaveId:  byte(*modbusSlave),
			URL:      *modbusURL,
			Password: *modbusPassword,
		}, server.driveCallback))
	default:
		log.Fatalf("unknown drive %q", *driveKind)
	}

	var displaySinks []mount.DisplaySink
	if *logFrames {
		displaySinks = append(displaySinks, &display.Log{})
	}
	if *lcdSerial != "" {
		displaySinks = append(displaySinks, display.OpenLCD(ctx, *lcdSerial, *lcdBaud))
	}
	displays := newDisplay(displaySinks...)

	c := controller.New(controller.Config{
		Drive:          driveConfig(),
		Title:          advertise.String(),
		Slew:           sim,
		Encoder:        sim,
		Motors:         sinks,
		Display:        displays,
		Metrics:        collector,
		StatusCallback: server.mountCallback,
	})
	defer c.Stop()
	sim.OnSpeeds(c.SlewSpeeds)
	c.Recompute()

	r := mux.NewRouter()
	r.Handle("/api/status", http.HandlerFunc(server.StatusHandler))
	r.Handle("/api/ws", http.HandlerFunc(server.StatusSocketHandler))
	r.Handle("/metrics", collector.Handler())
	r.PathPrefix("/debug").Handler(http.DefaultServeMux)
	srv := &http.Server{
		Handler:     r,
		Addr:        *httpAddr,
		ReadTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.Run(ctx) })
	g.Go(func() error { return serve(ctx, c) })
	g.Go(func() error {
		return broadcast(ctx, &controller.Broadcaster{
			Controller: c,
			Advertise:  advertise,
			PortStart:  uint16(*beaconPort),
			PortCount:  *beaconPorts,
			Interval:   *beaconInterval,
			Metrics:    collector,
		})
	})
	g.Go(func() error {
		log.Printf("Listening on %v", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(context.Background())
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("exiting: %v", err)
	}
}
