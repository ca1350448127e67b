// Package cliout prints a colorized, periodically-refreshed status
// table of one switch's ports to standard output (SPEC_FULL.md §3: a
// local operator view built on the same Snapshot the status API
// serves, not a separate data path).
package cliout

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/patchbay-labs/l2switch/statusapi"
)

var (
	rootColor       = color.New(color.FgGreen, color.Bold)
	designatedColor = color.New(color.FgCyan)
	blockedColor    = color.New(color.FgYellow)
	headerColor     = color.New(color.FgWhite, color.Bold)
)

// Init disables color output when NO_COLOR is set
// (https://no-color.org/), matching the rest of the pack's convention
// for this library. The terminal check is not made here: `fatih/color`
// already disables color at package init when stdout isn't a terminal.
func Init() {
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}
}

// Enabled reports whether the process is attached to a terminal:
// `fatih/color` already resolves this at
// package init via isatty, gated further by Init's NO_COLOR check.
// The periodic status table in cmd/l2switch only prints when this is
// true, so piping the process's stdout doesn't interleave a table into
// a log stream or file.
func Enabled() bool {
	return !color.NoColor
}

// PrintSnapshot renders snap as a table to w: one line per port, plus
// a header line with the elected root and this switch's distance to
// it.
func PrintSnapshot(w io.Writer, snap statusapi.Snapshot) {
	headerColor.Fprintf(w, "bridge %s  root %s  distance %d\n", snap.Own, snap.Root, snap.Distance)
	for _, p := range snap.Ports {
		c := roleColor(p.Role)
		c.Fprintf(w, "  port %-3d %-10s %s\n", p.Index, p.Role, p.State)
	}
	if len(snap.Forwarding) == 0 {
		fmt.Fprintln(w, "  (no forwarding table entries)")
		return
	}
	for _, e := range snap.Forwarding {
		fmt.Fprintf(w, "  %s -> port %d\n", e.MAC, e.Port)
	}
}

func roleColor(role string) *color.Color {
	switch role {
	case "root":
		return rootColor
	case "blocked":
		return blockedColor
	default:
		return designatedColor
	}
}
