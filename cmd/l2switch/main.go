// Command l2switch runs one node of the emulated network: it opens the
// given interfaces, elects a root bridge among its peers, and forwards
// Ethernet frames between them (spec §6).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
