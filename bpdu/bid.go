package bpdu

import (
	"encoding/hex"
	"fmt"

	"github.com/patchbay-labs/l2switch/ethernet"
)

// BID is a 48-bit bridge identifier derived from a switch's own MAC
// address, stored in the low 48 bits of a uint64. BIDs are totally
// ordered by unsigned comparison; lower is better (spec §3).
type BID uint64

// FromMAC derives a BID from a 6-byte hardware address.
func FromMAC(mac [6]byte) BID {
	var buf [8]byte
	copy(buf[2:], mac[:])
	return BID(uint64(buf[0])<<56 | uint64(buf[1])<<48 | uint64(buf[2])<<40 |
		uint64(buf[3])<<32 | uint64(buf[4])<<24 | uint64(buf[5])<<16 |
		uint64(buf[6])<<8 | uint64(buf[7]))
}

// MAC returns the 6-byte hardware address a BID was derived from.
func (b BID) MAC() (mac [6]byte) {
	v := uint64(b)
	mac[0] = byte(v >> 40)
	mac[1] = byte(v >> 32)
	mac[2] = byte(v >> 24)
	mac[3] = byte(v >> 16)
	mac[4] = byte(v >> 8)
	mac[5] = byte(v)
	return mac
}

// String renders the BID as a colon-separated MAC address.
func (b BID) String() string {
	return string(ethernet.AppendAddr(nil, b.MAC()))
}

// ParseBID parses a bridge identifier expressed as 12 hex digits (no
// separators), the format spec §6 requires for the process's
// bridge-id argument.
func ParseBID(s string) (BID, error) {
	if len(s) != 12 {
		return 0, fmt.Errorf("bpdu: bridge id %q must be exactly 12 hex digits", s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("bpdu: bridge id %q: %w", s, err)
	}
	var mac [6]byte
	copy(mac[:], raw)
	return FromMAC(mac), nil
}
