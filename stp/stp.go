// Package stp implements the reduced spanning tree engine: BPDU
// reception, own-BPDU synthesis, and root/port-role election
// (spec §4.5). Election is modeled as a pure function of the port
// array's best-heard BPDUs plus the switch's own bridge id, recomputed
// in full after every change rather than folded incrementally into
// reception (spec §9 "Election as a pure function").
package stp

import (
	"github.com/patchbay-labs/l2switch/bpdu"
	"github.com/patchbay-labs/l2switch/portstate"
)

// Engine tracks one switch's current view of the spanning tree. It
// does not own the port array: the switch loop passes it in on every
// call, matching spec §9's ownership note ("the switch loop
// exclusively owns the port-entry array; the STP engine receives
// per-call mutable access to this array").
type Engine struct {
	Own BID

	// Root is the currently elected root bridge id. Root == Own iff
	// this switch believes itself to be the root.
	Root BID
	// Distance is this switch's distance to Root in hops. Zero iff
	// this switch is the root.
	Distance uint32
	// HasRootPort is false iff this switch is the root (spec §3: "the
	// root bridge has no Root port").
	HasRootPort bool
	// RootPort is the local port index closest to Root. Only
	// meaningful when HasRootPort is true.
	RootPort int
}

// BID is re-exported for callers that only need package stp.
type BID = bpdu.BID

// New returns an Engine that initially believes itself to be the
// root, matching every port's startup role (spec §4.5 state machine:
// "Initial state on startup: Designated").
func New(own BID) *Engine {
	return &Engine{Own: own, Root: own}
}

// OwnBPDU synthesizes the BPDU this switch would emit on local port p
// (spec §4.5 "Own BPDU synthesis").
func (e *Engine) OwnBPDU(port int) bpdu.Record {
	return bpdu.Record{Root: e.Root, Distance: e.Distance, Sender: e.Own, SenderPort: uint32(port)}
}

// RoleChange describes one port's role transition as a side effect of
// Recompute, for the optional telemetry/status eventing in
// SPEC_FULL.md §4; it has no bearing on forwarding correctness.
type RoleChange struct {
	Port     int
	OldRole  portstate.Role
	NewRole  portstate.Role
}

// Diff summarizes what changed as a result of a Recompute call.
type Diff struct {
	RootChanged bool
	OldRoot     BID
	NewRoot     BID
	RoleChanges []RoleChange
}

// Changed reports whether anything actually moved.
func (d Diff) Changed() bool {
	return d.RootChanged || len(d.RoleChanges) > 0
}

// Receive processes a BPDU received at local port ingress: it updates
// that port's best-heard BPDU (spec §4.5 step 1, monotonic per law
// L1) and, if that changed anything, recomputes the election (step
// 2). BPDUs are always consumed here and never forwarded (step 3,
// property P6) — the caller (switchengine) must not call Send after
// calling Receive.
func (e *Engine) Receive(ports []portstate.Port, ingress int, rec bpdu.Record) Diff {
	if !ports[ingress].Record(rec) {
		return Diff{}
	}
	return e.Recompute(ports)
}

// Recompute re-derives Root/Distance/RootPort and every port's
// Role/State from scratch, as a pure function of ports' best-heard
// BPDUs and e.Own (spec §4.5 "Election"). It must be called after any
// change to a port's best-heard BPDU.
func (e *Engine) Recompute(ports []portstate.Port) Diff {
	oldRoot := e.Root
	oldRoles := make([]portstate.Role, len(ports))
	for i := range ports {
		oldRoles[i] = ports[i].Role
	}

	root := e.Own
	for i := range ports {
		if best, ok := ports[i].Best(); ok && best.Root < root {
			root = best.Root
		}
	}

	if root == e.Own {
		e.Root = e.Own
		e.Distance = 0
		e.HasRootPort = false
		for i := range ports {
			ports[i].SetRole(portstate.RoleDesignated)
		}
	} else {
		e.electNonRoot(ports, root)
	}

	return buildDiff(oldRoot, e.Root, oldRoles, ports)
}

// electNonRoot handles the branch of election where some other
// switch's root BID beat our own (spec §4.5 "Otherwise").
func (e *Engine) electNonRoot(ports []portstate.Port, root BID) {
	rootPortIdx := -1
	var bestDistance uint32
	var bestSender BID
	var bestSenderPort uint32

	for i := range ports {
		best, ok := ports[i].Best()
		if !ok || best.Root != root {
			continue
		}
		distance := best.Distance + 1
		better := rootPortIdx == -1 ||
			distance < bestDistance ||
			(distance == bestDistance && best.Sender < bestSender) ||
			(distance == bestDistance && best.Sender == bestSender && best.SenderPort < bestSenderPort)
		if better {
			rootPortIdx = i
			bestDistance = distance
			bestSender = best.Sender
			bestSenderPort = best.SenderPort
		}
	}
	// rootPortIdx cannot stay -1: root was chosen as the minimum root
	// BID among ports' best BPDUs, so at least one port advertises it.

	e.Root = root
	e.Distance = bestDistance
	e.HasRootPort = true
	e.RootPort = ports[rootPortIdx].Index

	for i := range ports {
		if i == rootPortIdx {
			ports[i].SetRole(portstate.RoleRoot)
			continue
		}
		own := bpdu.Record{Root: root, Distance: bestDistance, Sender: e.Own, SenderPort: uint32(ports[i].Index)}
		best, ok := ports[i].Best()
		if !ok || own.Less(best) {
			ports[i].SetRole(portstate.RoleDesignated)
		} else {
			ports[i].SetRole(portstate.RoleBlocked)
		}
	}
}

func buildDiff(oldRoot, newRoot BID, oldRoles []portstate.Role, ports []portstate.Port) Diff {
	d := Diff{RootChanged: oldRoot != newRoot, OldRoot: oldRoot, NewRoot: newRoot}
	for i := range ports {
		if ports[i].Role != oldRoles[i] {
			d.RoleChanges = append(d.RoleChanges, RoleChange{Port: i, OldRole: oldRoles[i], NewRole: ports[i].Role})
		}
	}
	return d
}
