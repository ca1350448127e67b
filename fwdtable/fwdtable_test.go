package fwdtable_test

import (
	"testing"

	"github.com/patchbay-labs/l2switch/fwdtable"
)

func TestLearnAndLookup(t *testing.T) {
	var tab fwdtable.Table
	mac := [6]byte{1, 2, 3, 4, 5, 6}

	if _, ok := tab.Lookup(mac); ok {
		t.Fatal("lookup on empty table must miss")
	}
	tab.Learn(mac, 2)
	port, ok := tab.Lookup(mac)
	if !ok || port != 2 {
		t.Fatalf("Lookup = (%d, %v), want (2, true)", port, ok)
	}
}

// TestLearnIsHardState covers law L2: learning the same (mac, port)
// twice, or a different port for an already-known mac, must never
// change the installed entry.
func TestLearnIsHardState(t *testing.T) {
	var tab fwdtable.Table
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	tab.Learn(mac, 1)
	tab.Learn(mac, 1) // idempotent
	tab.Learn(mac, 9) // must not overwrite
	port, ok := tab.Lookup(mac)
	if !ok || port != 1 {
		t.Fatalf("Lookup = (%d, %v), want (1, true): forwarding table entries must never update", port, ok)
	}
	if tab.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tab.Len())
	}
}

func TestEntries(t *testing.T) {
	var tab fwdtable.Table
	tab.Learn([6]byte{1}, 0)
	tab.Learn([6]byte{2}, 1)
	seen := map[[6]byte]int{}
	tab.Entries(func(mac [6]byte, port int) { seen[mac] = port })
	if len(seen) != 2 || seen[[6]byte{1}] != 0 || seen[[6]byte{2}] != 1 {
		t.Fatalf("Entries() produced %v", seen)
	}
}
