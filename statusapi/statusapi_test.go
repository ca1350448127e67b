package statusapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/patchbay-labs/l2switch/fwdtable"
	"github.com/patchbay-labs/l2switch/portstate"
	"github.com/patchbay-labs/l2switch/stp"
)

func TestHandleStatusServesSnapshot(t *testing.T) {
	var table fwdtable.Table
	table.Learn([6]byte{1, 2, 3, 4, 5, 6}, 0)
	ports := []portstate.Port{portstate.New(0), portstate.New(1)}

	s := New(func() Snapshot {
		return BuildSnapshot("000000000001", "000000000001", 0, false, 0, ports, &table)
	}, slog.New(slog.DiscardHandler))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	s.handleStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var got Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Own != "000000000001" || len(got.Ports) != 2 || len(got.Forwarding) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Forwarding[0].MAC != "01:02:03:04:05:06" {
		t.Fatalf("MAC = %q, want 01:02:03:04:05:06", got.Forwarding[0].MAC)
	}
}

func TestHandleStatusRateLimited(t *testing.T) {
	s := New(func() Snapshot { return Snapshot{} }, slog.New(slog.DiscardHandler))
	s.limiter.SetBurst(1)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr1 := httptest.NewRecorder()
	s.handleStatus(rr1, req)
	rr2 := httptest.NewRecorder()
	s.handleStatus(rr2, req)

	if rr1.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rr1.Code)
	}
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr2.Code)
	}
}

func TestBroadcastDropsForFullClientBuffer(t *testing.T) {
	s := New(func() Snapshot { return Snapshot{} }, slog.New(slog.DiscardHandler))
	c := &client{send: make(chan []byte, 1)}
	s.clients[c] = struct{}{}

	diff := stp.Diff{RootChanged: true}
	s.Broadcast(diff)
	s.Broadcast(diff) // buffer already full: must not block

	if len(c.send) != 1 {
		t.Fatalf("client buffer len = %d, want 1 (second broadcast dropped)", len(c.send))
	}
}
