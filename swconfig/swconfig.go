// Package swconfig loads the switch's tunable knobs (receive timeout,
// hello interval, optional telemetry/status addresses) from an
// optional YAML file layered under CLI flags layered under built-in
// defaults (SPEC_FULL.md §2 "Configuration"). Bridge identifier and
// interface list are never read from here: spec §6 fixes them as
// positional command-line arguments only.
package swconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config holds every knob this switch accepts besides bridge id and
// interface list.
type Config struct {
	// ReceiveTimeout is T (spec §4.2/§5): the per-port bounded-receive
	// timeout. Default 100µs, the spec's "empirically preferred" value.
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
	// HelloInterval is H (spec §4.5): the BPDU emission period.
	HelloInterval time.Duration `mapstructure:"hello_interval"`
	// TrapReceivers is the optional list of SNMPv2c trap receiver
	// addresses ("host:port"); empty disables telemetry entirely.
	TrapReceivers []string `mapstructure:"trap_receivers"`
	// StatusAddr is the optional loopback address for the status API
	// ("" disables it). Binding anything but loopback is the caller's
	// choice and risk, not this package's.
	StatusAddr string `mapstructure:"status_addr"`
}

// Defaults returns the built-in configuration, matching spec §4.2's
// stated default and §4.5's stated default, with telemetry and the
// status API disabled.
func Defaults() Config {
	return Config{
		ReceiveTimeout: 100 * time.Microsecond,
		HelloInterval:  2 * time.Second,
	}
}

// Load builds a Config starting from Defaults, overlaying an optional
// YAML file at path (if non-empty and present), then overlaying any
// values already bound onto v by the caller's flag parsing.
// An absent configFile is not an error: the switch runs entirely on
// defaults plus flags in that case.
func Load(configFile string, v *viper.Viper) (Config, error) {
	cfg := Defaults()
	v.SetDefault("receive_timeout", cfg.ReceiveTimeout)
	v.SetDefault("hello_interval", cfg.HelloInterval)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("swconfig: reading %s: %w", configFile, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("swconfig: decoding configuration: %w", err)
	}
	if cfg.ReceiveTimeout <= 0 {
		return cfg, fmt.Errorf("swconfig: receive_timeout must be positive, got %s", cfg.ReceiveTimeout)
	}
	if cfg.HelloInterval <= 0 {
		return cfg, fmt.Errorf("swconfig: hello_interval must be positive, got %s", cfg.HelloInterval)
	}
	return cfg, nil
}
