package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/patchbay-labs/l2switch/bpdu"
	"github.com/patchbay-labs/l2switch/cliout"
	"github.com/patchbay-labs/l2switch/fwdtable"
	"github.com/patchbay-labs/l2switch/portio"
	"github.com/patchbay-labs/l2switch/portstate"
	"github.com/patchbay-labs/l2switch/statusapi"
	"github.com/patchbay-labs/l2switch/stp"
	"github.com/patchbay-labs/l2switch/swconfig"
	"github.com/patchbay-labs/l2switch/switchengine"
	"github.com/patchbay-labs/l2switch/telemetry"
)

var opts struct {
	configFile string
	jsonLog    bool
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "l2switch <bridge-id> <iface-1> [iface-2 ...]",
		Short: "Self-learning, loop-free Layer-2 Ethernet switch",
		Long: `l2switch runs one node of an emulated multi-switch network: it opens the
given interfaces, participates in a reduced Spanning Tree Protocol to elect a
loop-free active topology, and forwards Ethernet frames between hosts.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runSwitch,
	}
	cmd.Flags().StringVar(&opts.configFile, "config", "", "optional YAML file overriding timing defaults")
	cmd.Flags().BoolVar(&opts.jsonLog, "json-log", false, "emit structured logs as JSON instead of text")
	cmd.Flags().String("status-addr", "", "loopback address to serve GET /status and /events on (disabled if empty)")
	cmd.Flags().StringSlice("trap-receivers", nil, "SNMPv2c trap receiver addresses (host:port), comma-separated")
	cmd.Flags().Duration("receive-timeout", 0, "override the per-port bounded-receive timeout T")
	cmd.Flags().Duration("hello-interval", 0, "override the BPDU emission interval H")
	return cmd
}

// runSwitch implements spec §6's external interface: argv[0] is the
// bridge id, argv[1:] are interface names. Any error returned here
// makes main exit non-zero: a malformed bridge id, an invalid
// configuration, an interface that cannot be opened at startup (spec
// §7 "startup errors"), or a failure of the status API listener.
func runSwitch(cmd *cobra.Command, args []string) error {
	own, err := bpdu.ParseBID(args[0])
	if err != nil {
		return fmt.Errorf("l2switch: bridge id %q: %w", args[0], err)
	}
	ifaceNames := args[1:]

	v := viper.New()
	bindChangedFlag(v, cmd, "status_addr", "status-addr")
	bindChangedFlag(v, cmd, "trap_receivers", "trap-receivers")
	bindChangedFlag(v, cmd, "receive_timeout", "receive-timeout")
	bindChangedFlag(v, cmd, "hello_interval", "hello-interval")
	cfg, err := swconfig.Load(opts.configFile, v)
	if err != nil {
		return err
	}

	log := newLogger(opts.jsonLog)
	cliout.Init()

	ports := make([]*portio.Port, 0, len(ifaceNames))
	ioPorts := make([]switchengine.PortIO, 0, len(ifaceNames))
	defer func() {
		for _, p := range ports {
			p.Close()
		}
	}()
	for _, name := range ifaceNames {
		p, err := portio.Open(name, cfg.ReceiveTimeout)
		if err != nil {
			return fmt.Errorf("l2switch: opening interface %q: %w", name, err)
		}
		ports = append(ports, p)
		ioPorts = append(ioPorts, p)
	}

	var sender *telemetry.Sender
	if len(cfg.TrapReceivers) > 0 {
		sender = telemetry.New(own.String(), cfg.TrapReceivers, log)
	}

	var sw *switchengine.Switch
	var status *statusapi.Server
	if cfg.StatusAddr != "" {
		status = statusapi.New(func() statusapi.Snapshot { return snapshot(own, sw) }, log)
	}

	sw = switchengine.New(own, ioPorts,
		switchengine.WithHelloInterval(cfg.HelloInterval),
		switchengine.WithLogger(log),
		switchengine.WithDiffHook(func(d stp.Diff) {
			if sender != nil {
				sender.OnDiff(d)
			}
			if status != nil {
				status.Broadcast(d)
			}
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sw.Run(gctx) })
	if status != nil {
		g.Go(func() error { return status.Serve(gctx, cfg.StatusAddr) })
	}
	if cliout.Enabled() {
		g.Go(func() error { return runCLIOutput(gctx, own, sw) })
	}

	log.Info("l2switch started", "bridge_id", own.String(), "interfaces", ifaceNames)
	err = g.Wait()
	log.Info("l2switch stopped")
	return err
}

// bindChangedFlag binds a CLI flag into viper only if the user
// actually set it. Binding unconditionally would let an unset flag's
// zero value shadow a config-file value, since viper treats a bound
// pflag as present the moment it's bound, not only once changed.
func bindChangedFlag(v *viper.Viper, cmd *cobra.Command, key, flagName string) {
	if cmd.Flags().Changed(flagName) {
		v.BindPFlag(key, cmd.Flags().Lookup(flagName))
	}
}

func newLogger(asJSON bool) *slog.Logger {
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func snapshot(own bpdu.BID, sw *switchengine.Switch) statusapi.Snapshot {
	var snap statusapi.Snapshot
	sw.Introspect(func(root bpdu.BID, distance uint32, hasRootPort bool, rootPort int, ports []portstate.Port, table *fwdtable.Table) {
		snap = statusapi.BuildSnapshot(own.String(), root.String(), distance, hasRootPort, rootPort, ports, table)
	})
	return snap
}

// cliRefreshInterval is how often the terminal status table redraws.
const cliRefreshInterval = 2 * time.Second

// runCLIOutput prints a periodically-refreshed colorized port table to
// stdout until ctx is cancelled. Only started when cliout.Enabled
// reports the process is attached to a terminal.
func runCLIOutput(ctx context.Context, own bpdu.BID, sw *switchengine.Switch) error {
	ticker := time.NewTicker(cliRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cliout.PrintSnapshot(os.Stdout, snapshot(own, sw))
		}
	}
}
