package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/w1xm/eqmount/mount"
)

const AckSize = 18

// Ack mirrors the mount state after a request was handled.
//
// Layout: [tracking:1][pulseGuiding:1][raSpeed:4][decSpeed:4]
// [raGuideSpeed:4][decGuideSpeed:4], big-endian.
type Ack struct {
	Tracking      mount.TrackingMode
	PulseGuiding  mount.GuideDirection
	RaSpeed       mount.Rate
	DecSpeed      mount.Rate
	RaGuideSpeed  mount.Rate
	DecGuideSpeed mount.Rate
}

func (a Ack) Encode() []byte {
	b := make([]byte, AckSize)
	b[0] = byte(a.Tracking)
	b[1] = byte(a.PulseGuiding)
	binary.BigEndian.PutUint32(b[2:], uint32(a.RaSpeed))
	binary.BigEndian.PutUint32(b[6:], uint32(a.DecSpeed))
	binary.BigEndian.PutUint32(b[10:], uint32(a.RaGuideSpeed))
	binary.BigEndian.PutUint32(b[14:], uint32(a.DecGuideSpeed))
	return b
}

func DecodeAck(b []byte) (Ack, error) {
	if len(b) != AckSize {
		return Ack{}, fmt.Errorf("ack: %w: got %d bytes, want %d", ErrLength, len(b), AckSize)
	}
	return Ack{
		Tracking:      mount.TrackingMode(int8(b[0])),
		PulseGuiding:  mount.GuideDirection(b[1]),
		RaSpeed:       mount.Rate(int32(binary.BigEndian.Uint32(b[2:]))),
		DecSpeed:      mount.Rate(int32(binary.BigEndian.Uint32(b[6:]))),
		RaGuideSpeed:  mount.Rate(int32(binary.BigEndian.Uint32(b[10:]))),
		DecGuideSpeed: mount.Rate(int32(binary.BigEndian.Uint32(b[14:]))),
	}, nil
}
