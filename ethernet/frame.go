package ethernet

import (
	"encoding/binary"
	"errors"
)

// errShort is returned when a buffer is too small to hold an Ethernet
// II header.
var errShort = errors.New("ethernet: frame shorter than header")

// NewFrame returns a Frame viewing buf. An error is returned if buf is
// shorter than HeaderLength; callers must not slice buf further
// underneath a live Frame.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < HeaderLength {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame is a view over the raw bytes of an untagged Ethernet II frame:
// destination address, source address, EtherType, payload. The first
// byte of buf is the first byte of the destination address; no
// preamble or FCS is present.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice the Frame was constructed from.
func (f Frame) RawData() []byte { return f.buf }

// Payload returns the data following the 14-byte header.
func (f Frame) Payload() []byte { return f.buf[HeaderLength:] }

// DestinationHardwareAddr returns a pointer to the destination address
// field, in place in the underlying buffer.
func (f Frame) DestinationHardwareAddr() *[6]byte {
	return (*[6]byte)(f.buf[0:6])
}

// SourceHardwareAddr returns a pointer to the source address field, in
// place in the underlying buffer.
func (f Frame) SourceHardwareAddr() *[6]byte {
	return (*[6]byte)(f.buf[6:12])
}

// EtherType returns the EtherType/size field. Use [Type.IsSize] to
// tell whether this is really an EtherType or an 802.3 length.
func (f Frame) EtherType() Type {
	return Type(binary.BigEndian.Uint16(f.buf[12:14]))
}

// SetEtherType sets the EtherType/size field.
func (f Frame) SetEtherType(t Type) {
	binary.BigEndian.PutUint16(f.buf[12:14], uint16(t))
}

// IsBroadcast reports whether the destination address is the
// broadcast address ff:ff:ff:ff:ff:ff.
func (f Frame) IsBroadcast() bool {
	return *f.DestinationHardwareAddr() == BroadcastAddr()
}

// IsFlooded reports whether a frame addressed to this destination
// must be flooded rather than looked up in a forwarding table:
// broadcast and multicast destinations are never learned or looked up
// (spec §4.3).
func (f Frame) IsFlooded() bool {
	return IsMulticast(*f.DestinationHardwareAddr())
}
