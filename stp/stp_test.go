package stp_test

import (
	"testing"

	"github.com/patchbay-labs/l2switch/bpdu"
	"github.com/patchbay-labs/l2switch/portstate"
	"github.com/patchbay-labs/l2switch/stp"
)

func mustBID(t *testing.T, s string) bpdu.BID {
	t.Helper()
	b, err := bpdu.ParseBID(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newPorts(n int) []portstate.Port {
	ports := make([]portstate.Port, n)
	for i := range ports {
		ports[i] = portstate.New(i)
	}
	return ports
}

func TestRecomputeSelfRootWhenNoBetterBPDUHeard(t *testing.T) {
	own := mustBID(t, "000000000001")
	e := stp.New(own)
	ports := newPorts(3)

	e.Recompute(ports)

	if e.Root != own || e.Distance != 0 || e.HasRootPort {
		t.Fatalf("expected self-root with distance 0 and no root port, got root=%v dist=%d hasRootPort=%v", e.Root, e.Distance, e.HasRootPort)
	}
	for i := range ports {
		if ports[i].Role != portstate.RoleDesignated {
			t.Errorf("port %d role = %v, want designated", i, ports[i].Role)
		}
	}
}

func TestRecomputeElectsLowerRootAndSetsRootPort(t *testing.T) {
	own := mustBID(t, "000000000005")
	better := mustBID(t, "000000000001")
	e := stp.New(own)
	ports := newPorts(2)
	ports[1].Record(bpdu.Record{Root: better, Distance: 0, Sender: better, SenderPort: 0})

	e.Recompute(ports)

	if e.Root != better || e.Distance != 1 || !e.HasRootPort || e.RootPort != 1 {
		t.Fatalf("got root=%v dist=%d hasRootPort=%v rootPort=%d", e.Root, e.Distance, e.HasRootPort, e.RootPort)
	}
	if ports[1].Role != portstate.RoleRoot {
		t.Fatalf("port 1 role = %v, want root", ports[1].Role)
	}
	if ports[0].Role != portstate.RoleDesignated {
		t.Fatalf("port 0 role = %v, want designated (no BPDU heard there)", ports[0].Role)
	}
}

// TestRecomputeTieBreakSmallestPortIndex covers spec §4.5's tie-break:
// two ports hearing an identical best BPDU must resolve to the
// smallest local port index as the root port.
func TestRecomputeTieBreakSmallestPortIndex(t *testing.T) {
	own := mustBID(t, "000000000005")
	better := mustBID(t, "000000000001")
	e := stp.New(own)
	ports := newPorts(3)
	identical := bpdu.Record{Root: better, Distance: 0, Sender: better, SenderPort: 0}
	ports[2].Record(identical)
	ports[0].Record(identical)
	ports[1].Record(identical)

	e.Recompute(ports)

	if e.RootPort != 0 {
		t.Fatalf("RootPort = %d, want 0 (smallest index among identical candidates)", e.RootPort)
	}
}

func TestPortBestIsMonotonic(t *testing.T) {
	var p portstate.Port = portstate.New(0)
	good := bpdu.Record{Root: mustBID(t, "000000000001"), Distance: 1}
	worse := bpdu.Record{Root: mustBID(t, "000000000002"), Distance: 1}

	if !p.Record(good) {
		t.Fatal("first record must report changed")
	}
	if p.Record(worse) {
		t.Fatal("strictly worse BPDU must not replace the stored best (law L1)")
	}
	got, ok := p.Best()
	if !ok || got != good {
		t.Fatalf("Best() = (%v, %v), want (%v, true)", got, ok, good)
	}
}

// --- multi-switch convergence scenarios (spec §8 concrete scenarios) ---

type link struct {
	swA, portA int
	swB, portB int
}

type node struct {
	engine *stp.Engine
	ports  []portstate.Port
}

// converge runs synchronous rounds of "every switch emits its current
// BPDU on every non-Blocked port; every neighbor receives it" until a
// full round after the first produces no root or role changes
// anywhere, or maxRounds is exceeded.
func converge(t *testing.T, nodes []node, links []link, maxRounds int) {
	t.Helper()
	for round := 0; round < maxRounds; round++ {
		type delivery struct {
			sw, port int
			rec      bpdu.Record
		}
		var outbox []delivery
		for si, n := range nodes {
			for _, p := range n.ports {
				if p.Role == portstate.RoleBlocked {
					continue // spec §4.5: blocked ports send nothing.
				}
				outbox = append(outbox, delivery{sw: si, port: p.Index, rec: n.engine.OwnBPDU(p.Index)})
			}
		}
		changed := false
		for _, d := range outbox {
			for _, l := range links {
				var peerSw, peerPort int
				switch {
				case l.swA == d.sw && l.portA == d.port:
					peerSw, peerPort = l.swB, l.portB
				case l.swB == d.sw && l.portB == d.port:
					peerSw, peerPort = l.swA, l.portA
				default:
					continue
				}
				diff := nodes[peerSw].engine.Receive(nodes[peerSw].ports, peerPort, d.rec)
				if diff.Changed() {
					changed = true
				}
			}
		}
		if !changed && round > 0 {
			return
		}
	}
}

func buildNodes(t *testing.T, bids []string, portsPerSwitch []int) []node {
	t.Helper()
	nodes := make([]node, len(bids))
	for i, b := range bids {
		nodes[i] = node{
			engine: stp.New(mustBID(t, b)),
			ports:  newPorts(portsPerSwitch[i]),
		}
	}
	return nodes
}

func TestConvergenceTriangle(t *testing.T) {
	// A=1 B=2 C=3, each pair directly linked, 2 ports per switch.
	nodes := buildNodes(t, []string{"000000000001", "000000000002", "000000000003"}, []int{2, 2, 2})
	links := []link{
		{swA: 0, portA: 0, swB: 1, portB: 0}, // A-B
		{swA: 0, portA: 1, swB: 2, portB: 0}, // A-C
		{swA: 1, portA: 1, swB: 2, portB: 1}, // B-C
	}
	converge(t, nodes, links, 10)

	for i, n := range nodes {
		if n.engine.Root != nodes[0].engine.Own {
			t.Errorf("switch %d elected root %v, want %v", i, n.engine.Root, nodes[0].engine.Own)
		}
	}
	if nodes[0].engine.HasRootPort {
		t.Error("root switch must have no root port")
	}
	for i := 1; i < 3; i++ {
		if !nodes[i].engine.HasRootPort {
			t.Errorf("switch %d must have a root port", i)
		}
	}
	// Exactly one port in the whole triangle (the B-C link) is Blocked.
	blocked := 0
	for _, n := range nodes {
		for _, p := range n.ports {
			if p.Role == portstate.RoleBlocked {
				blocked++
			}
		}
	}
	if blocked != 1 {
		t.Errorf("blocked port count = %d, want 1", blocked)
	}
	// The blocked port must be on B or C's side of the B-C link.
	bc := nodes[1].ports[1].Role == portstate.RoleBlocked || nodes[2].ports[1].Role == portstate.RoleBlocked
	if !bc {
		t.Error("blocked port must be on the B-C link")
	}
}

func TestConvergenceLinearChain(t *testing.T) {
	// 4 switches in a line, BIDs assigned in order: lowest BID (first)
	// becomes root; no port should end up Blocked.
	nodes := buildNodes(t, []string{
		"000000000001", "000000000002", "000000000003", "000000000004",
	}, []int{1, 2, 2, 1})
	links := []link{
		{swA: 0, portA: 0, swB: 1, portB: 0},
		{swA: 1, portA: 1, swB: 2, portB: 0},
		{swA: 2, portA: 1, swB: 3, portB: 0},
	}
	converge(t, nodes, links, 10)

	for i, n := range nodes {
		if n.engine.Root != nodes[0].engine.Own {
			t.Errorf("switch %d root = %v, want switch 0's bid", i, n.engine.Root)
		}
		for _, p := range n.ports {
			if p.Role == portstate.RoleBlocked {
				t.Errorf("switch %d port %d is blocked, chain must have none", i, p.Index)
			}
		}
	}
}

func TestConvergenceSquareWithDiagonal(t *testing.T) {
	// A-B-C-D-A ring plus an A-C diagonal; one cycle, so exactly one
	// port in the whole network must end up Blocked.
	nodes := buildNodes(t, []string{
		"000000000001", "000000000002", "000000000003", "000000000004",
	}, []int{3, 2, 3, 2})
	links := []link{
		{swA: 0, portA: 0, swB: 1, portB: 0}, // A-B
		{swA: 1, portA: 1, swB: 2, portB: 0}, // B-C
		{swA: 2, portA: 1, swB: 3, portB: 0}, // C-D
		{swA: 3, portA: 1, swB: 0, portB: 1}, // D-A
		{swA: 0, portA: 2, swB: 2, portB: 2}, // A-C diagonal
	}
	converge(t, nodes, links, 10)

	blocked := 0
	for _, n := range nodes {
		for _, p := range n.ports {
			if p.Role == portstate.RoleBlocked {
				blocked++
			}
		}
	}
	if blocked != 1 {
		t.Errorf("blocked port count = %d, want 1 (one redundant cycle)", blocked)
	}
	for i, n := range nodes {
		if n.engine.Root != nodes[0].engine.Own {
			t.Errorf("switch %d root = %v, want switch 0's bid", i, n.engine.Root)
		}
	}
}

func TestConvergenceRootChangeOnRelabel(t *testing.T) {
	// Same triangle topology as scenario 1, but C now has the lowest BID.
	nodes := buildNodes(t, []string{"000000000005", "000000000006", "000000000001"}, []int{2, 2, 2})
	links := []link{
		{swA: 0, portA: 0, swB: 1, portB: 0},
		{swA: 0, portA: 1, swB: 2, portB: 0},
		{swA: 1, portA: 1, swB: 2, portB: 1},
	}
	converge(t, nodes, links, 10)

	for i, n := range nodes {
		if n.engine.Root != nodes[2].engine.Own {
			t.Errorf("switch %d root = %v, want switch C's (lowest) bid", i, n.engine.Root)
		}
	}
	if nodes[2].engine.HasRootPort {
		t.Error("new root (C) must have no root port")
	}
}
