// Package switchengine runs the single-threaded poll loop (spec §4.6)
// and frame dispatch (spec §4.7): the place where port I/O, the STP
// engine, and the forwarding table meet.
package switchengine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/patchbay-labs/l2switch/bpdu"
	"github.com/patchbay-labs/l2switch/ethernet"
	"github.com/patchbay-labs/l2switch/fwdtable"
	"github.com/patchbay-labs/l2switch/portio"
	"github.com/patchbay-labs/l2switch/portstate"
	"github.com/patchbay-labs/l2switch/stp"
)

// PortIO is the I/O surface switchengine needs from one port. portio.Port
// satisfies it; tests substitute an in-memory fake.
type PortIO interface {
	Recv(buf []byte) (int, error)
	Send(frame []byte) error
	Name() string
	HardwareAddr() [6]byte
}

// DiffFunc is notified after every election recomputation that
// actually changed something, for the optional telemetry/status
// eventing described in SPEC_FULL.md §4. It must not block or retain
// the Diff's slices past the call.
type DiffFunc func(stp.Diff)

// Switch owns one node's complete runtime state: its ports, its STP
// engine, and its forwarding table. It is the sole mutator of all
// three (spec §5: "owned by the switch loop and mutated only by it").
type Switch struct {
	own   bpdu.BID
	ports []portstate.Port
	io    []PortIO
	rx    [][]byte

	engine *stp.Engine
	table  fwdtable.Table

	helloInterval time.Duration
	lastHello     time.Time

	log    *slog.Logger
	onDiff DiffFunc

	// introspect guards ports/engine/table against the optional status
	// API (SPEC_FULL.md §4) and terminal status table goroutines, which
	// run outside the poll loop. It is only ever contended when one of
	// those is running; the core dispatch path still does all its real
	// work single-threaded.
	introspect sync.Mutex
}

// Option configures a Switch at construction.
type Option func(*Switch)

// WithHelloInterval overrides the default BPDU emission interval H
// (spec §4.5 default "on the order of 1-2 seconds").
func WithHelloInterval(d time.Duration) Option {
	return func(s *Switch) { s.helloInterval = d }
}

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Switch) { s.log = l }
}

// WithDiffHook registers fn to be called whenever an election
// recomputation changes the root or any port's role.
func WithDiffHook(fn DiffFunc) Option {
	return func(s *Switch) { s.onDiff = fn }
}

const defaultHelloInterval = 2 * time.Second
const maxFrame = 2048

// New constructs a Switch bound to own's bridge identity and the
// given ports, in index order. Port index i in the returned Switch
// corresponds to ports[i].
func New(own bpdu.BID, ports []PortIO, opts ...Option) *Switch {
	states := make([]portstate.Port, len(ports))
	rx := make([][]byte, len(ports))
	for i := range states {
		states[i] = portstate.New(i)
		rx[i] = make([]byte, maxFrame)
	}
	s := &Switch{
		own:           own,
		ports:         states,
		io:            ports,
		rx:            rx,
		engine:        stp.New(own),
		helloInterval: defaultHelloInterval,
		log:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Introspect runs fn with a consistent, non-racing view of the
// current election result, port states, and forwarding table, for the
// status API and CLI output. fn must not retain ports or table past
// the call and must not call back into the Switch (it runs under the
// lock that also guards dispatch).
func (s *Switch) Introspect(fn func(root bpdu.BID, distance uint32, hasRootPort bool, rootPort int, ports []portstate.Port, table *fwdtable.Table)) {
	s.introspect.Lock()
	defer s.introspect.Unlock()
	fn(s.engine.Root, s.engine.Distance, s.engine.HasRootPort, s.engine.RootPort, s.ports, &s.table)
}

// Run executes the poll loop (spec §4.6) until ctx is cancelled. It
// never returns an error on its own: per spec §7, only startup errors
// are fatal, and Run begins after startup has already succeeded.
func (s *Switch) Run(ctx context.Context) error {
	s.lastHello = walltime()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		for p := range s.io {
			n, err := s.io[p].Recv(s.rx[p])
			if err != nil {
				if !errors.Is(err, portio.ErrTimeout) {
					s.log.Warn("recv failed", "port", s.io[p].Name(), "error", err)
				}
				continue // timeout or transient recv error: not fatal (spec §7).
			}
			s.dispatch(p, s.rx[p][:n])
		}
		if walltime().Sub(s.lastHello) >= s.helloInterval {
			s.emitHellos()
			s.lastHello = walltime()
		}
	}
}

// walltime is split out so tests can't accidentally depend on actual
// wall-clock timing of the hello interval.
var walltime = time.Now

// dispatch implements spec §4.7 for one frame received at ingress p.
func (s *Switch) dispatch(p int, raw []byte) {
	s.introspect.Lock()
	defer s.introspect.Unlock()
	frame, err := ethernet.NewFrame(raw)
	if err != nil {
		return // truncated header: drop silently (spec §7).
	}
	dst := *frame.DestinationHardwareAddr()
	payload := frame.Payload()

	if bpdu.Classify(dst, frame.EtherType(), payload) {
		rec, err := bpdu.Decode(payload)
		if err != nil {
			return // malformed BPDU: drop silently (spec §7).
		}
		diff := s.engine.Receive(s.ports, p, rec)
		if diff.Changed() {
			s.logDiff(diff)
			if s.onDiff != nil {
				s.onDiff(diff)
			}
		}
		return // BPDUs are never forwarded (P6).
	}

	if s.ports[p].Role == portstate.RoleBlocked {
		s.log.Debug("drop: blocked ingress", "port", p)
		return // blocked port + data frame: drop, do not learn.
	}

	src := *frame.SourceHardwareAddr()
	s.table.Learn(src, p)

	if frame.IsBroadcast() || frame.IsFlooded() {
		s.log.Debug("flood", "port", p, "dst", dst)
		s.flood(raw, p)
		return
	}
	egress, ok := s.table.Lookup(dst)
	if !ok {
		s.log.Debug("flood: unknown unicast", "port", p, "dst", dst)
		s.flood(raw, p)
		return
	}
	if egress == p {
		s.log.Debug("drop: reflect", "port", p, "dst", dst)
		return // would reflect onto the ingress port: drop (P5).
	}
	if s.ports[egress].Role == portstate.RoleBlocked {
		s.log.Debug("drop: egress blocked", "port", p, "egress", egress, "dst", dst)
		return
	}
	s.log.Debug("unicast", "port", p, "egress", egress, "dst", dst)
	if err := s.io[egress].Send(raw); err != nil {
		s.log.Warn("send failed", "port", s.io[egress].Name(), "error", err)
	}
}

// logDiff logs the root-change and role-transition side effects of an
// election recomputation (SPEC_FULL.md §2 Logging: "Info for BPDU
// emission ticks and role transitions").
func (s *Switch) logDiff(diff stp.Diff) {
	if diff.RootChanged {
		s.log.Info("root changed", "old_root", diff.OldRoot, "new_root", diff.NewRoot)
	}
	for _, rc := range diff.RoleChanges {
		s.log.Info("port role changed", "port", rc.Port, "old_role", rc.OldRole, "new_role", rc.NewRole)
	}
}

// flood sends raw on every non-Blocked port other than except.
func (s *Switch) flood(raw []byte, except int) {
	for i := range s.ports {
		if i == except || s.ports[i].Role == portstate.RoleBlocked {
			continue
		}
		if err := s.io[i].Send(raw); err != nil {
			s.log.Warn("flood send failed", "port", s.io[i].Name(), "error", err)
		}
	}
}

// emitHellos sends this switch's current BPDU on every non-Blocked
// port (spec §4.5 "Emission").
func (s *Switch) emitHellos() {
	s.introspect.Lock()
	defer s.introspect.Unlock()
	s.log.Info("hello tick", "root", s.engine.Root, "distance", s.engine.Distance)
	var buf [bpdu.Size]byte
	for i := range s.ports {
		if s.ports[i].Role == portstate.RoleBlocked {
			continue
		}
		rec := s.engine.OwnBPDU(i)
		bpdu.Encode(buf[:], rec)

		frame := make([]byte, ethernet.HeaderLength+bpdu.Size)
		f, _ := ethernet.NewFrame(frame)
		dst := bpdu.MulticastAddr()
		src := s.io[i].HardwareAddr()
		copy(f.DestinationHardwareAddr()[:], dst[:])
		copy(f.SourceHardwareAddr()[:], src[:])
		f.SetEtherType(ethernet.TypeBPDUPrivate)
		copy(f.Payload(), buf[:])
		if err := s.io[i].Send(frame); err != nil {
			s.log.Warn("hello send failed", "port", s.io[i].Name(), "error", err)
		}
	}
}
