// Package telemetry emits optional SNMPv2c traps when the root bridge
// or a port's role changes (SPEC_FULL.md §4 "supplemented features").
// It is purely observational: nothing here feeds back into forwarding
// or STP correctness, and a telemetry send failure never touches the
// switch loop's control flow.
package telemetry

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/time/rate"

	"github.com/patchbay-labs/l2switch/stp"
)

// OID prefixes for the two trap kinds this package emits. They live
// under the same enterprise-private subtree niac-go's trap sender
// uses for its own custom traps.
const (
	oidRootChange = ".1.3.6.1.4.1.9999.1.1"
	oidRoleChange = ".1.3.6.1.4.1.9999.1.2"
)

// Sender emits traps to one or more configured SNMPv2c receivers.
// Sends are rate-limited so a flapping link can't turn into a trap
// storm, and retried with exponential backoff on transient failure.
type Sender struct {
	deviceName string
	receivers  []*gosnmp.GoSNMP
	limiter    *rate.Limiter
	log        *slog.Logger
}

// New builds a Sender that reports as deviceName to every address in
// receivers ("host:port", default port 162 if omitted).
func New(deviceName string, receivers []string, log *slog.Logger) *Sender {
	s := &Sender{
		deviceName: deviceName,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		log:        log,
	}
	for _, addr := range receivers {
		host, port := splitHostPort(addr)
		s.receivers = append(s.receivers, &gosnmp.GoSNMP{
			Target:    host,
			Port:      port,
			Community: "public",
			Version:   gosnmp.Version2c,
			Timeout:   2 * time.Second,
			Retries:   1,
		})
	}
	return s
}

// OnDiff is a switchengine.DiffFunc: wire it in with
// switchengine.WithDiffHook(sender.OnDiff) to get one trap per root
// change and one per port role change.
func (s *Sender) OnDiff(d stp.Diff) {
	if len(s.receivers) == 0 {
		return
	}
	if d.RootChanged {
		s.send(oidRootChange, "rootChange", []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.4.1.9999.2.1", Type: gosnmp.OctetString, Value: d.OldRoot.String()},
			{Name: ".1.3.6.1.4.1.9999.2.2", Type: gosnmp.OctetString, Value: d.NewRoot.String()},
		})
	}
	for _, rc := range d.RoleChanges {
		s.send(oidRoleChange, "roleChange", []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.4.1.9999.2.3", Type: gosnmp.Integer, Value: rc.Port},
			{Name: ".1.3.6.1.4.1.9999.2.4", Type: gosnmp.OctetString, Value: rc.OldRole.String()},
			{Name: ".1.3.6.1.4.1.9999.2.5", Type: gosnmp.OctetString, Value: rc.NewRole.String()},
		})
	}
}

func (s *Sender) send(trapOID, name string, varbinds []gosnmp.SnmpPDU) {
	if !s.limiter.Allow() {
		s.log.Debug("telemetry: trap dropped by rate limiter", "trap", name)
		return
	}
	trap := gosnmp.SnmpTrap{
		Variables: append([]gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(time.Now().Unix() % 4294967296)},
			{Name: ".1.3.6.1.6.3.1.1.4.1.0", Type: gosnmp.ObjectIdentifier, Value: trapOID},
		}, varbinds...),
	}
	for _, recv := range s.receivers {
		if err := sendWithBackoff(recv, trap); err != nil {
			s.log.Debug("telemetry: trap send failed", "trap", name, "receiver", recv.Target, "error", err)
		}
	}
}

const (
	backoffMin = 5 * time.Millisecond
	backoffMax = 200 * time.Millisecond
	maxAttempts = 3
)

// sendWithBackoff retries a single trap delivery with exponential
// backoff, matching the connect/send/close cycle gosnmp.GoSNMP needs
// per call.
func sendWithBackoff(recv *gosnmp.GoSNMP, trap gosnmp.SnmpTrap) error {
	wait := backoffMin
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(wait)
			wait *= 2
			if wait > backoffMax {
				wait = backoffMax
			}
		}
		if err := recv.Connect(); err != nil {
			lastErr = err
			continue
		}
		_, err := recv.SendTrap(trap)
		recv.Conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func splitHostPort(addr string) (string, uint16) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 162
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return host, 162
	}
	return host, uint16(port)
}
