//go:build linux

// Package portio is the bounded-receive, non-blocking-send abstraction
// over one physical Ethernet interface (spec §4.2). It wraps one
// AF_PACKET raw socket per port: a short SO_RCVTIMEO bounds every Recv
// call so the switch loop can poll many ports round-robin on a single
// goroutine without blocking on any one of them (spec §5).
package portio

import (
	"errors"
	"fmt"
	"time"

	"github.com/vishvananda/netlink"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// Port is one raw AF_PACKET socket bound to a single interface.
// Port is not safe for concurrent use; the switch loop polls its
// ports strictly in sequence (spec §5).
type Port struct {
	fd     int
	name   string
	index  int
	hwAddr [6]byte
}

// Open validates that name refers to an existing, administratively up
// interface (spec §6: startup interface validation), binds a raw
// AF_PACKET socket to it promiscuously, and arms the socket's receive
// timeout so Recv never blocks longer than timeout.
func Open(name string, timeout time.Duration) (*Port, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return nil, fmt.Errorf("portio: interface %q: %w", name, err)
	}
	attrs := link.Attrs()
	if attrs.Flags&netlink.FlagUp == 0 {
		return nil, fmt.Errorf("portio: interface %q is not up", name)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_ALL))
	if err != nil {
		return nil, fmt.Errorf("portio: socket: %w", err)
	}
	sa := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  attrs.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("portio: bind %q: %w", name, err)
	}
	mreq := unix.PacketMreq{Ifindex: int32(attrs.Index), Type: unix.PACKET_MR_PROMISC}
	if err := unix.SetsockoptPacketMreq(fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("portio: promiscuous mode on %q: %w", name, err)
	}
	if err := setRecvTimeout(fd, timeout); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("portio: set receive timeout on %q: %w", name, err)
	}

	var hw [6]byte
	copy(hw[:], attrs.HardwareAddr)

	return &Port{fd: fd, name: name, index: attrs.Index, hwAddr: hw}, nil
}

// SetFilter attaches a classic BPF program to the socket so the
// kernel, not this process, discards frames the switch never needs to
// see. Passing a filter is optional: portio works correctly without
// one, just at a higher syscall cost under heavy broadcast traffic.
func (p *Port) SetFilter(insns []bpf.Instruction) error {
	raw, err := bpf.Assemble(insns)
	if err != nil {
		return fmt.Errorf("portio: assembling filter: %w", err)
	}
	prog := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		prog[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(prog)),
		Filter: &prog[0],
	}
	return unix.SetsockoptSockFprog(p.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog)
}

// Recv reads one frame into buf, returning ErrTimeout if nothing
// arrived within the configured timeout.
func (p *Port) Recv(buf []byte) (int, error) {
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, ErrTimeout
		}
		return 0, fmt.Errorf("portio: recv on %q: %w", p.name, err)
	}
	return n, nil
}

// Send transmits one fully-formed frame. Send never blocks: raw
// AF_PACKET writes to a healthy link-up interface complete immediately
// or fail (spec §4.2: "send must not stall the poll loop").
func (p *Port) Send(frame []byte) error {
	_, err := unix.Write(p.fd, frame)
	if err != nil {
		return fmt.Errorf("portio: send on %q: %w", p.name, err)
	}
	return nil
}

// Close releases the underlying socket.
func (p *Port) Close() error { return unix.Close(p.fd) }

// Name returns the interface name this port was opened with.
func (p *Port) Name() string { return p.name }

// HardwareAddr returns the interface's MAC address, read once at Open.
func (p *Port) HardwareAddr() [6]byte { return p.hwAddr }

func setRecvTimeout(fd int, d time.Duration) error {
	tv := unix.NsecToTimeval(d.Nanoseconds())
	return unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)
}

func htons(i uint16) uint16 { return i<<8&0xff00 | i>>8 }
