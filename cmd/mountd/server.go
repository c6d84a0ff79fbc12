package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/w1xm/eqmount/modbusdrive"
	"github.com/w1xm/eqmount/mount"
)

// Status is the JSON form of the mount state. Rates are in rotations per
// day and angles in degrees.
type Status struct {
	Tracking      int8     `json:"tracking"`
	PulseGuiding  string   `json:"pulse_guiding"`
	RaSpeed       float64  `json:"ra_speed"`
	DecSpeed      float64  `json:"dec_speed"`
	RaGuideSpeed  float64  `json:"ra_guide_speed"`
	DecGuideSpeed float64  `json:"dec_guide_speed"`
	SideOfPier    string   `json:"side_of_pier"`
	Slewing       bool     `json:"slewing"`
	RaAngle       float64  `json:"ra_angle"`
	DecAngle      float64  `json:"dec_angle"`
	Display       []string `json:"display"`

	// Drive is set when a Modbus drive is attached.
	Drive *modbusdrive.Status `json:"drive,omitempty"`
}

func newStatus(s mount.Status) Status {
	pulse := ""
	if s.PulseGuiding != mount.GuideNone {
		pulse = s.PulseGuiding.String()
	}
	return Status{
		Tracking:      int8(s.Tracking),
		PulseGuiding:  pulse,
		RaSpeed:       s.RaSpeed.Cycles(),
		DecSpeed:      s.DecSpeed.Cycles(),
		RaGuideSpeed:  s.RaGuideSpeed.Cycles(),
		DecGuideSpeed: s.DecGuideSpeed.Cycles(),
		SideOfPier:    s.SideOfPier.String(),
		Slewing:       s.Slewing,
		RaAngle:       s.RaAngle.Degrees(),
		DecAngle:      s.DecAngle.Degrees(),
		Display:       append([]string{s.Display.Title}, s.Display.Lines[:]...),
	}
}

// Server publishes status updates to HTTP clients.
type Server struct {
	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     Status
	seq        int
}

func NewServer() *Server {
	s := &Server{}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) current() (Status, int) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status, s.seq
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status, _ := s.current()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		http.Error(w, err.Error(), 500)
		return
	}
	w.Write(data)
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	// The feed is read-only; reading only detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		s.statusMu.Lock()
		s.statusCond.Broadcast()
		s.statusMu.Unlock()
	}()

	status, seq := s.current()
	for {
		data, err := json.Marshal(status)
		if err != nil {
			log.Print(err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Print(err)
			return
		}
		s.statusMu.RLock()
		for s.seq == seq && ctx.Err() == nil {
			s.statusCond.Wait()
		}
		status, seq = s.status, s.seq
		s.statusMu.RUnlock()
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) update(f func(*Status)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	f(&s.status)
	s.seq++
	s.statusCond.Broadcast()
}

// mountCallback receives controller status. It runs with the controller
// lock held.
func (s *Server) mountCallback(status mount.Status) {
	next := newStatus(status)
	s.update(func(st *Status) {
		next.Drive = st.Drive
		*st = next
	})
}

func (s *Server) driveCallback(status modbusdrive.Status) {
	s.update(func(st *Status) {
		st.Drive = &status
	})
}
