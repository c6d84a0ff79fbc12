package modbus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goburrow/modbus"
	"github.com/google/go-cmp/cmp"
)

// echo answers every request with itself, which is a valid reply to a
// single coil or register write.
type echo struct {
	requests [][]byte
	err      error
}

func (e *echo) Send(adu []byte) ([]byte, error) {
	e.requests = append(e.requests, adu)
	if e.err != nil {
		return nil, e.err
	}
	return adu, nil
}

func TestBridge(t *testing.T) {
	bus := &echo{}
	srv := httptest.NewServer(&Bridge{Transporter: bus, Password: "hunter2"})
	defer srv.Close()

	client := modbus.NewClient(NewHTTPHandler(srv.URL, "hunter2", 3))
	if _, err := client.WriteSingleCoil(2, CoilValue(true)); err != nil {
		t.Fatalf("WriteSingleCoil: %v", err)
	}
	if len(bus.requests) != 1 {
		t.Fatalf("bus saw %d requests", len(bus.requests))
	}
	// slave, function, address, value
	if diff := cmp.Diff([]byte{3, 5, 0, 2, 0xff, 0}, bus.requests[0][:6]); diff != "" {
		t.Errorf("unexpected request: want(-)/got(+):\n%s", diff)
	}

	bus.err = errors.New("timeout")
	if _, err := client.WriteSingleCoil(2, CoilValue(false)); err == nil || err.Error() != "timeout" {
		t.Errorf("bus error = %v, want timeout", err)
	}

	wrong := modbus.NewClient(NewHTTPHandler(srv.URL, "letmein", 3))
	if _, err := wrong.WriteSingleCoil(2, CoilValue(true)); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestBridgeNoPassword(t *testing.T) {
	bus := &echo{}
	b := &Bridge{Transporter: bus}
	req := httptest.NewRequest("POST", "/api/send", nil)
	rec := httptest.NewRecorder()
	b.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBits(t *testing.T) {
	bits := []bool{true, false, true, false, false, false, false, false, true}
	b := BitsToBytes(bits)
	if diff := cmp.Diff([]byte{0x05, 0x01}, b); diff != "" {
		t.Errorf("BitsToBytes: want(-)/got(+):\n%s", diff)
	}
	if diff := cmp.Diff(bits, BytesToBits(b)[:len(bits)]); diff != "" {
		t.Errorf("BytesToBits: want(-)/got(+):\n%s", diff)
	}
}
