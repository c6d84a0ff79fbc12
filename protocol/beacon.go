package protocol

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/w1xm/eqmount/mount"
)

const BeaconSize = 25

// Beacon advertises a controller to clients on the local network.
//
// Layout: [ip:4][port:2][ra:4][dec:4][slewing:1][tracking:1][raSpeed:4]
// [decSpeed:4][sideOfPier:1], big-endian. RA and DEC are sky frame.
type Beacon struct {
	Addr       netip.AddrPort
	RA, Dec    mount.AngleMillis
	Slewing    bool
	Tracking   mount.TrackingMode
	RaSpeed    mount.Rate
	DecSpeed   mount.Rate
	SideOfPier mount.SideOfPier
}

func (b Beacon) Encode() []byte {
	out := make([]byte, BeaconSize)
	ip := b.Addr.Addr().Unmap()
	if ip.Is4() {
		v4 := ip.As4()
		copy(out[0:4], v4[:])
	}
	binary.BigEndian.PutUint16(out[4:], b.Addr.Port())
	binary.BigEndian.PutUint32(out[6:], uint32(b.RA))
	binary.BigEndian.PutUint32(out[10:], uint32(b.Dec))
	if b.Slewing {
		out[14] = 1
	}
	out[15] = byte(b.Tracking)
	binary.BigEndian.PutUint32(out[16:], uint32(b.RaSpeed))
	binary.BigEndian.PutUint32(out[20:], uint32(b.DecSpeed))
	out[24] = byte(b.SideOfPier)
	return out
}

func DecodeBeacon(b []byte) (Beacon, error) {
	if len(b) != BeaconSize {
		return Beacon{}, fmt.Errorf("beacon: %w: got %d bytes, want %d", ErrLength, len(b), BeaconSize)
	}
	ip := netip.AddrFrom4([4]byte{b[0], b[1], b[2], b[3]})
	return Beacon{
		Addr:       netip.AddrPortFrom(ip, binary.BigEndian.Uint16(b[4:])),
		RA:         mount.AngleMillis(int32(binary.BigEndian.Uint32(b[6:]))),
		Dec:        mount.AngleMillis(int32(binary.BigEndian.Uint32(b[10:]))),
		Slewing:    b[14] != 0,
		Tracking:   mount.TrackingMode(int8(b[15])),
		RaSpeed:    mount.Rate(int32(binary.BigEndian.Uint32(b[16:]))),
		DecSpeed:   mount.Rate(int32(binary.BigEndian.Uint32(b[20:]))),
		SideOfPier: mount.SideOfPier(b[24]),
	}, nil
}
