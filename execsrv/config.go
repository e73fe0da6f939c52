// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/tzfuzz/execsrv/pkg/config"
	"github.com/tzfuzz/execsrv/pkg/osutil"
)

// Config is the optional config file (-config). Flags given on the command line
// override values from the file.
type Config struct {
	// Target executable, usually the emulator (-p).
	Target string `yaml:"target"`
	// Log file, output is appended (-l).
	Log string `yaml:"log,omitempty"`
	// Target arguments after argv[0] (positional arguments).
	Args []string `yaml:"args,omitempty"`
	// Syscalls that fail with EPERM in the target (-deny).
	DenySyscalls []string `yaml:"deny_syscalls,omitempty"`
	// Address of the Prometheus /metrics endpoint (-http).
	HTTP string `yaml:"http,omitempty"`
	// Period of the stats log line (-stats).
	StatsPeriod time.Duration `yaml:"stats_period,omitempty"`
}

type flagValues struct {
	target string
	log    string
	deny   []string
	http   string
	stats  time.Duration
}

// loadConfig merges the config file with the flags that were actually set.
func loadConfig(set *flag.FlagSet, file string, vals flagValues) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if !osutil.IsExist(file) {
			return nil, fmt.Errorf("config file %v does not exist", file)
		}
		if err := config.LoadFile(file, cfg); err != nil {
			return nil, err
		}
	}
	set.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Target = vals.target
		case "l":
			cfg.Log = vals.log
		case "deny":
			cfg.DenySyscalls = vals.deny
		case "http":
			cfg.HTTP = vals.http
		case "stats":
			cfg.StatsPeriod = vals.stats
		}
	})
	if set.NArg() != 0 {
		cfg.Args = set.Args()
	}
	if cfg.Target == "" {
		return nil, fmt.Errorf("no target executable specified (-p)")
	}
	if cfg.StatsPeriod < 0 {
		return nil, fmt.Errorf("negative stats period %v", cfg.StatsPeriod)
	}
	return cfg, nil
}
