// Package protocol implements the mount's UDP datagram formats.
//
// A request is a one byte opcode followed by big-endian fields. Every request
// has exactly one valid length; anything else is rejected.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/w1xm/eqmount/mount"
)

type Opcode uint8

const (
	Ping             Opcode = 0
	SetTracking      Opcode = 1
	SetRaSpeed       Opcode = 2
	SetDecSpeed      Opcode = 3
	PulseGuide       Opcode = 4
	SetRaGuideSpeed  Opcode = 5
	SetDecGuideSpeed Opcode = 6
	SyncToTarget     Opcode = 7
	SlewToTarget     Opcode = 8
	AbortSlew        Opcode = 9
	SetSideOfPier    Opcode = 10
)

var opcodeNames = map[Opcode]string{
	Ping:             "ping",
	SetTracking:      "setTracking",
	SetRaSpeed:       "setRaSpeed",
	SetDecSpeed:      "setDecSpeed",
	PulseGuide:       "pulseGuide",
	SetRaGuideSpeed:  "setRaGuideSpeed",
	SetDecGuideSpeed: "setDecGuideSpeed",
	SyncToTarget:     "syncTo",
	SlewToTarget:     "slewTo",
	AbortSlew:        "abortSlew",
	SetSideOfPier:    "setSideOfPier",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(o))
}

// requestLengths includes the opcode byte.
var requestLengths = map[Opcode]int{
	Ping:             1,
	SetTracking:      2,
	SetRaSpeed:       5,
	SetDecSpeed:      5,
	PulseGuide:       4,
	SetRaGuideSpeed:  5,
	SetDecGuideSpeed: 5,
	SyncToTarget:     9,
	SlewToTarget:     9,
	AbortSlew:        1,
	SetSideOfPier:    2,
}

var (
	ErrEmpty         = errors.New("empty datagram")
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrLength        = errors.New("wrong datagram length")
)

// Request is a decoded command. Only the fields used by Op are set.
type Request struct {
	Op Opcode

	Tracking mount.TrackingMode
	Speed    mount.Rate

	Direction mount.GuideDirection
	// DurationMillis is the signed 16-bit pulse length.
	DurationMillis int16

	RA, Dec mount.AngleMillis

	SideOfPier mount.SideOfPier
}

// Decode parses a request datagram.
func Decode(b []byte) (Request, error) {
	if len(b) == 0 {
		return Request{}, ErrEmpty
	}
	req := Request{Op: Opcode(b[0])}
	want, ok := requestLengths[req.Op]
	if !ok {
		return req, fmt.Errorf("%w %d", ErrUnknownOpcode, b[0])
	}
	if len(b) != want {
		return req, fmt.Errorf("%v: %w: got %d bytes, want %d", req.Op, ErrLength, len(b), want)
	}
	p := b[1:]
	switch req.Op {
	case SetTracking:
		req.Tracking = mount.TrackingMode(int8(p[0]))
	case SetRaSpeed, SetDecSpeed, SetRaGuideSpeed, SetDecGuideSpeed:
		req.Speed = mount.Rate(int32(binary.BigEndian.Uint32(p)))
	case PulseGuide:
		req.Direction = mount.GuideDirection(p[0])
		req.DurationMillis = int16(binary.BigEndian.Uint16(p[1:]))
	case SyncToTarget, SlewToTarget:
		req.RA = mount.AngleMillis(int32(binary.BigEndian.Uint32(p)))
		req.Dec = mount.AngleMillis(int32(binary.BigEndian.Uint32(p[4:])))
	case SetSideOfPier:
		if int8(p[0]) != 0 {
			req.SideOfPier = mount.PierFlipped
		}
	}
	return req, nil
}

// Encode is the inverse of Decode. Clients use it to build requests.
func (r Request) Encode() []byte {
	n, ok := requestLengths[r.Op]
	if !ok {
		return []byte{byte(r.Op)}
	}
	b := make([]byte, n)
	b[0] = byte(r.Op)
	p := b[1:]
	switch r.Op {
	case SetTracking:
		p[0] = byte(r.Tracking)
	case SetRaSpeed, SetDecSpeed, SetRaGuideSpeed, SetDecGuideSpeed:
		binary.BigEndian.PutUint32(p, uint32(r.Speed))
	case PulseGuide:
		p[0] = byte(r.Direction)
		binary.BigEndian.PutUint16(p[1:], uint16(r.DurationMillis))
	case SyncToTarget, SlewToTarget:
		binary.BigEndian.PutUint32(p, uint32(r.RA))
		binary.BigEndian.PutUint32(p[4:], uint32(r.Dec))
	case SetSideOfPier:
		p[0] = byte(r.SideOfPier)
	}
	return b
}
