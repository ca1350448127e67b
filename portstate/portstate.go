// Package portstate holds the per-port STP role, forwarding state,
// and best-observed BPDU a switch needs to run the election in
// package stp (spec §3 "Port entry", §4.4).
package portstate

import "github.com/patchbay-labs/l2switch/bpdu"

// Role is a port's position in the spanning tree.
type Role uint8

const (
	// RoleDesignated is the initial role of every port at startup
	// (spec §4.5: "the switch initially believes itself root") and
	// the steady-state role of every port on the root bridge, plus any
	// non-root port that is authoritative for its segment.
	RoleDesignated Role = iota
	// RoleRoot is held by at most one port: the one closest to the
	// elected root. The root bridge itself has no Root port.
	RoleRoot
	// RoleBlocked ports neither forward data nor learn from it, but
	// still receive and process BPDUs (spec §4.5).
	RoleBlocked
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleDesignated:
		return "designated"
	case RoleBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ForwardingState mirrors Role: Forwarding for {Root, Designated},
// Blocking for Blocked (spec §3).
type ForwardingState uint8

const (
	Forwarding ForwardingState = iota
	Blocking
)

func (s ForwardingState) String() string {
	if s == Forwarding {
		return "forwarding"
	}
	return "blocking"
}

// ForwardingStateForRole derives the forwarding state mandated by a role.
func ForwardingStateForRole(r Role) ForwardingState {
	if r == RoleBlocked {
		return Blocking
	}
	return Forwarding
}

// Port holds one local interface's STP-relevant state. The Index
// field is this port's own local index and never changes; Role and
// State are mutated exclusively by the STP engine's election
// (spec §4.4: "Role and forwarding state are set exclusively by the
// STP engine").
type Port struct {
	Index int
	Role  Role
	State ForwardingState

	best    bpdu.Record
	hasBest bool
}

// New returns a Port in its startup state: Designated/Forwarding, no
// BPDU heard yet.
func New(index int) Port {
	return Port{Index: index, Role: RoleDesignated, State: Forwarding}
}

// Record updates the best BPDU heard on this port if r is strictly
// better than the one currently stored (spec §4.4, law L1: a port's
// best BPDU never becomes strictly worse). It reports whether the
// stored value changed.
func (p *Port) Record(r bpdu.Record) (changed bool) {
	if !p.hasBest || r.Less(p.best) {
		p.best = r
		p.hasBest = true
		return true
	}
	return false
}

// Best returns the best BPDU heard on this port, if any.
func (p *Port) Best() (bpdu.Record, bool) {
	return p.best, p.hasBest
}

// ClearBest discards any recorded BPDU. The STP engine never calls
// this, since best BPDUs are monotonic (law L1).
func (p *Port) ClearBest() {
	p.best = bpdu.Record{}
	p.hasBest = false
}

// SetRole applies a new role and the forwarding state it implies.
func (p *Port) SetRole(r Role) {
	p.Role = r
	p.State = ForwardingStateForRole(r)
}
