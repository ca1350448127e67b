// Package statusapi exposes a read-only snapshot of one switch's STP
// and forwarding-table state over HTTP, plus a websocket feed of
// root/role-change events (SPEC_FULL.md §4). It is local-loopback-only
// by default and carries no persisted state of its own: every request
// is served from whatever the switch loop currently holds.
package statusapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/patchbay-labs/l2switch/ethernet"
	"github.com/patchbay-labs/l2switch/fwdtable"
	"github.com/patchbay-labs/l2switch/portstate"
	"github.com/patchbay-labs/l2switch/stp"
)

// Snapshot is the JSON shape served by GET /status.
type Snapshot struct {
	Own         string         `json:"own"`
	Root        string         `json:"root"`
	Distance    uint32         `json:"distance"`
	HasRootPort bool           `json:"has_root_port"`
	RootPort    int            `json:"root_port"`
	Ports       []PortSnapshot `json:"ports"`
	Forwarding  []FDBEntry     `json:"forwarding_table"`
}

// PortSnapshot is one port's STP role and forwarding state.
type PortSnapshot struct {
	Index int    `json:"index"`
	Role  string `json:"role"`
	State string `json:"state"`
}

// FDBEntry is one learned (MAC, port) pair.
type FDBEntry struct {
	MAC  string `json:"mac"`
	Port int    `json:"port"`
}

// SourceFunc produces a fresh Snapshot on demand. The switch loop
// supplies this; statusapi never reaches into switchengine state
// directly, since only the switch loop's goroutine may touch it.
type SourceFunc func() Snapshot

// Server serves /status and /events on a listener the caller controls
// (see Serve; the address is used as given, loopback or not).
type Server struct {
	source  SourceFunc
	limiter *rate.Limiter
	log     *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New constructs a Server that calls source to build each /status
// response and broadcasts events published via Broadcast to every
// connected /events websocket client.
func New(source SourceFunc, log *slog.Logger) *Server {
	return &Server{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the http.Handler for this server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Serve listens on addr (expected to be loopback-only, e.g.
// "127.0.0.1:8080") and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	err = srv.Serve(lis)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	go s.writePump(c)
}

func (s *Server) writePump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		c.conn.Close()
	}()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// event is the wire shape broadcast over /events.
type event struct {
	Type string `json:"type"`
	Diff stp.Diff `json:"diff"`
}

// Broadcast pushes d to every connected /events client. Call it from
// a switchengine.DiffFunc hook; it never blocks the caller longer than
// a channel send to a full buffer allows, and drops the event for any
// client whose buffer is already full rather than stalling the switch
// loop.
func (s *Server) Broadcast(d stp.Diff) {
	msg, err := json.Marshal(event{Type: "stp_diff", Diff: d})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.log.Debug("statusapi: dropping event for slow client")
		}
	}
}

// BuildSnapshot is a convenience constructor for SourceFunc, grounded
// on the switch loop's own state types.
func BuildSnapshot(own, root string, distance uint32, hasRootPort bool, rootPort int, ports []portstate.Port, table *fwdtable.Table) Snapshot {
	snap := Snapshot{
		Own:         own,
		Root:        root,
		Distance:    distance,
		HasRootPort: hasRootPort,
		RootPort:    rootPort,
	}
	for _, p := range ports {
		snap.Ports = append(snap.Ports, PortSnapshot{Index: p.Index, Role: p.Role.String(), State: p.State.String()})
	}
	table.Entries(func(mac [6]byte, port int) {
		snap.Forwarding = append(snap.Forwarding, FDBEntry{MAC: string(ethernet.AppendAddr(nil, mac)), Port: port})
	})
	return snap
}
