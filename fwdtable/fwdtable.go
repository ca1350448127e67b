// Package fwdtable implements the switch's MAC learning table: a
// hard-state mapping from source MAC to ingress port index, installed
// on first observation and never updated thereafter (spec §3, §4.3).
//
// This is an explicit simplification, not a feature: it eliminates a
// timer and a soft-state collector, and is only correct because the
// topology this switch runs in never changes after convergence
// (spec §1 non-goals, §9 "Hard-state forwarding table").
package fwdtable

// Table maps learned source MAC addresses to the port they were first
// observed on. The zero value is ready to use. Table is not safe for
// concurrent use; the switch loop is its sole owner (spec §5).
type Table struct {
	ports map[[6]byte]int
}

// Learn records that mac was observed arriving on ingress port p. If
// mac is already known, the call is a no-op: entries are never
// updated once installed (spec §4.3, law L2 idempotent-learn).
func (t *Table) Learn(mac [6]byte, ingress int) {
	if t.ports == nil {
		t.ports = make(map[[6]byte]int)
	}
	if _, known := t.ports[mac]; known {
		return
	}
	t.ports[mac] = ingress
}

// Lookup returns the egress port learned for mac, if any. Callers
// must not call Lookup for broadcast/multicast destinations: those
// always flood (spec §4.3). Learn itself does not filter them out.
func (t *Table) Lookup(mac [6]byte) (port int, ok bool) {
	port, ok = t.ports[mac]
	return port, ok
}

// Len returns the number of learned entries, for diagnostics.
func (t *Table) Len() int { return len(t.ports) }

// Entries calls fn once per learned (mac, port) pair, in unspecified
// order, for diagnostics and the status snapshot.
func (t *Table) Entries(fn func(mac [6]byte, port int)) {
	for mac, port := range t.ports {
		fn(mac, port)
	}
}
