package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/w1xm/eqmount/display"
	"github.com/w1xm/eqmount/modbusdrive"
	"github.com/w1xm/eqmount/mount"
)

func TestNewStatus(t *testing.T) {
	got := newStatus(mount.Status{
		Tracking:      1,
		PulseGuiding:  mount.GuideWest,
		RaSpeed:       15000,
		DecSpeed:      -7500,
		RaGuideSpeed:  7500,
		DecGuideSpeed: 7500,
		SideOfPier:    mount.PierFlipped,
		RaAngle:       mount.Deg90,
		DecAngle:      -mount.Deg90 / 2,
		Display:       mount.Display{Title: "t", Lines: [3]string{"a", "b", "c"}},
	})
	want := Status{
		Tracking:      1,
		PulseGuiding:  "west",
		RaSpeed:       1,
		DecSpeed:      -0.5,
		RaGuideSpeed:  0.5,
		DecGuideSpeed: 0.5,
		SideOfPier:    "BeyondThePole/West",
		RaAngle:       90,
		DecAngle:      -45,
		Display:       []string{"t", "a", "b", "c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected status: want(-)/got(+):\n%s", diff)
	}
}

func TestStatusHandler(t *testing.T) {
	s := NewServer()
	s.mountCallback(mount.Status{Tracking: -1})
	s.driveCallback(modbusdrive.Status{Connected: true})
	s.mountCallback(mount.Status{Tracking: -1, Slewing: true})

	rec := httptest.NewRecorder()
	s.StatusHandler(rec, httptest.NewRequest("GET", "/api/status", nil))
	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Tracking != -1 || !got.Slewing || got.Drive == nil || !got.Drive.Connected {
		t.Errorf("status = %+v", got)
	}
}

func TestStatusSocket(t *testing.T) {
	s := NewServer()
	s.mountCallback(mount.Status{Tracking: 1})
	srv := httptest.NewServer(http.HandlerFunc(s.StatusSocketHandler))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var got Status
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Tracking != 1 {
		t.Errorf("first status tracking = %d", got.Tracking)
	}
	s.mountCallback(mount.Status{Slewing: true})
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Tracking != 0 || !got.Slewing {
		t.Errorf("second status = %+v", got)
	}
}

func TestNewDisplay(t *testing.T) {
	if got := newDisplay(); got != display.Discard {
		t.Errorf("newDisplay() = %#v, want Discard", got)
	}
	l := &display.Log{}
	if got := newDisplay(l); got != mount.DisplaySink(l) {
		t.Errorf("newDisplay(log) = %#v", got)
	}
	if m, ok := newDisplay(l, &display.Log{}).(display.Multi); !ok || len(m) != 2 {
		t.Errorf("newDisplay of two sinks = %#v", m)
	}
}
