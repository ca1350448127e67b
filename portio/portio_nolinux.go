//go:build !linux

package portio

import (
	"errors"
	"time"

	"golang.org/x/net/bpf"
)

// Port is a non-functional stand-in on platforms without AF_PACKET
// raw sockets. This switch requires Linux; see portio.go.
type Port struct{}

func Open(name string, timeout time.Duration) (*Port, error) {
	return nil, errors.ErrUnsupported
}

func (p *Port) SetFilter(insns []bpf.Instruction) error { return errors.ErrUnsupported }
func (p *Port) Recv(buf []byte) (int, error)            { return 0, errors.ErrUnsupported }
func (p *Port) Send(frame []byte) error                 { return errors.ErrUnsupported }
func (p *Port) Close() error                            { return errors.ErrUnsupported }
func (p *Port) Name() string                            { return "" }
func (p *Port) HardwareAddr() [6]byte                   { return [6]byte{} }
