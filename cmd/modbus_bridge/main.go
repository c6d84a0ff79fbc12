// Command modbus_bridge exposes a local Modbus RTU serial bus over HTTP, so
// mountd can drive a Modbus stepper controller attached to another host.
package main

import (
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"time"

	goburrow "github.com/goburrow/modbus"
	"github.com/gorilla/mux"
	"github.com/w1xm/eqmount/internal/modbus"
)

var (
	addr       = flag.String("addr", "127.0.0.1:8503", "address to listen on")
	password   = flag.String("password", "", "password to require on remote connections")
	serialPort = flag.String("serial", "", "Modbus serial port name")
	baud       = flag.Int("baud", 19200, "Modbus baud rate")
)

func main() {
	flag.Parse()
	handler := goburrow.NewRTUClientHandler(*serialPort)
	handler.BaudRate = *baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.Timeout = 1 * time.Second
	handler.SlaveId = 1

	r := mux.NewRouter()
	r.Handle("/api/send", &modbus.Bridge{Transporter: handler, Password: *password})
	r.PathPrefix("/debug").Handler(http.DefaultServeMux)
	srv := &http.Server{
		Handler:      r,
		Addr:         *addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Printf("Listening on %v", srv.Addr)
	log.Fatal(srv.ListenAndServe())
}
