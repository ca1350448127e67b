// Package ethernet implements a minimal Ethernet II frame view sufficient
// for a Layer-2 switch: address fields, EtherType, and payload. VLAN
// tagging is out of scope for this switch and unsupported here.
package ethernet

import "strconv"

const (
	// HeaderLength is the fixed size of an Ethernet II header: 6 bytes
	// destination, 6 bytes source, 2 bytes EtherType/size.
	HeaderLength = 14
)

// AppendAddr appends the text representation of the hardware address to the destination buffer.
func AppendAddr(dst []byte, hwAddr [6]byte) []byte {
	for i, b := range hwAddr {
		if i != 0 {
			dst = append(dst, ':')
		}
		if b < 16 {
			dst = append(dst, '0')
		}
		dst = strconv.AppendUint(dst, uint64(b), 16)
	}
	return dst
}

// BroadcastAddr returns the all 0xff's broadcast hardware/MAC/EUI/OUI address.
func BroadcastAddr() [6]byte {
	return [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

// IsMulticast reports whether hwAddr is a multicast or broadcast
// address, i.e. whether the I/G bit (LSB of the first octet) is set.
// Broadcast is the all-ones special case of multicast.
func IsMulticast(hwAddr [6]byte) bool {
	return hwAddr[0]&0x01 != 0
}

// Type is the EtherType field of an Ethernet II frame.
type Type uint16

// IsSize returns true if the EtherType is actually the size of the payload
// and should NOT be interpreted as an EtherType.
func (et Type) IsSize() bool { return et <= 1500 }

// String returns a human-readable name for the EtherTypes this switch
// cares about, or the hex value otherwise.
func (et Type) String() string {
	switch et {
	case TypeIPv4:
		return "IPv4"
	case TypeIPv6:
		return "IPv6"
	case TypeARP:
		return "ARP"
	case TypeBPDUPrivate:
		return "BPDU"
	default:
		return "0x" + strconv.FormatUint(uint64(et), 16)
	}
}

// Ethernet type flags relevant to a forwarding-only switch: the
// well-known upper-layer types are listed so that data frames carrying
// them are never misclassified, plus the switch's own private BPDU
// EtherType (spec §4.1's alternate recognition scheme).
const (
	TypeIPv4 Type = 0x0800
	TypeARP  Type = 0x0806
	TypeIPv6 Type = 0x86DD

	// TypeBPDUPrivate is the alternate BPDU recognition scheme allowed
	// by spec §4.1: a private EtherType whose payload begins with
	// bpdu.Magic. This switch classifies BPDUs primarily by
	// destination address (see bpdu.Classify) but also classifies
	// frames of this EtherType whose payload begins with bpdu.Magic as
	// BPDUs. Its own BPDUs carry this EtherType without the magic.
	TypeBPDUPrivate Type = 0x88B5 // IEEE 802 "Local Experimental Ethertype 1"

	// minPayload is the minimum Ethernet II payload size; frames
	// shorter than this were padded on the wire. Not enforced by this
	// switch, which forwards whatever payload length it receives.
	minPayload = 46
)
