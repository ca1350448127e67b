// Package bpdu implements the reduced Bridge Protocol Data Unit used by
// this switch's spanning tree: a fixed 20-byte payload carrying the
// sender's view of the root bridge, its distance to it in hops, and
// the sender's own identity. See spec §3 and §4.1.
package bpdu

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/patchbay-labs/l2switch/ethernet"
)

// Size is the fixed wire size of a BPDU payload.
const Size = 6 + 4 + 6 + 4

// Magic is the payload prefix used by the EtherType-based BPDU
// recognition scheme (spec §4.1, alternate to destination-MAC
// recognition). [Classify] accepts it on receive. This switch sends
// BPDUs addressed to [MulticastAddr] with EtherType
// [ethernet.TypeBPDUPrivate] and a payload that is the bare 20-byte
// record, without this magic; [Decode] likewise takes the bare record,
// so a payload that still starts with the magic is rejected as
// malformed.
var Magic = [4]byte{'s', 't', 'p', '0'}

var (
	// errSize is returned by Decode when the payload is not exactly Size bytes.
	errSize = errors.New("bpdu: payload must be exactly 20 bytes")
)

// MulticastAddr returns the well-known IEEE 802.1D STP multicast
// destination address 01:80:C2:00:00:00.
func MulticastAddr() [6]byte {
	return [6]byte{0x01, 0x80, 0xC2, 0x00, 0x00, 0x00}
}

// Classify reports whether a received Ethernet frame carries a BPDU,
// using either recognition scheme allowed by spec §4.1.
func Classify(dst [6]byte, etherType ethernet.Type, payload []byte) bool {
	if dst == MulticastAddr() {
		return true
	}
	return etherType == ethernet.TypeBPDUPrivate &&
		len(payload) >= len(Magic) && bytes.Equal(payload[:len(Magic)], Magic[:])
}

// Record is the sender's view of the spanning tree at the moment it
// was sent or recorded: the elected root, this sender's distance to
// it in hops, the sender's own bridge identifier, and the local port
// index the sender transmitted it on.
type Record struct {
	Root       BID
	Distance   uint32
	Sender     BID
	SenderPort uint32
}

// Less reports whether r is strictly better than other under the
// total order of spec §3: lexicographic on (root asc, distance asc,
// sender asc, sender port asc). Smaller is better.
func (r Record) Less(other Record) bool {
	switch {
	case r.Root != other.Root:
		return r.Root < other.Root
	case r.Distance != other.Distance:
		return r.Distance < other.Distance
	case r.Sender != other.Sender:
		return r.Sender < other.Sender
	default:
		return r.SenderPort < other.SenderPort
	}
}

// Encode writes the wire representation of r to dst, which must be at
// least Size bytes long, and returns the number of bytes written.
func Encode(dst []byte, r Record) int {
	_ = dst[:Size] // bounds check hint
	putBID(dst[0:6], r.Root)
	binary.BigEndian.PutUint32(dst[6:10], r.Distance)
	putBID(dst[10:16], r.Sender)
	binary.BigEndian.PutUint32(dst[16:20], r.SenderPort)
	return Size
}

// Decode parses a BPDU payload of exactly Size bytes. Malformed
// payloads (wrong length) return an error; the caller (switch loop)
// must drop such frames silently per spec §4.1/§7.
func Decode(payload []byte) (Record, error) {
	if len(payload) != Size {
		return Record{}, errSize
	}
	return Record{
		Root:       getBID(payload[0:6]),
		Distance:   binary.BigEndian.Uint32(payload[6:10]),
		Sender:     getBID(payload[10:16]),
		SenderPort: binary.BigEndian.Uint32(payload[16:20]),
	}, nil
}

func putBID(dst []byte, b BID) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(b))
	copy(dst, buf[2:8])
}

func getBID(src []byte) BID {
	var buf [8]byte
	copy(buf[2:8], src)
	return BID(binary.BigEndian.Uint64(buf[:]))
}
