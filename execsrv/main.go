// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// execsrv is an AFL fork server for targets that run under an emulator.
// It starts the target once, lets it stop itself at a rendezvous point with
// SIGSTOP and resumes it for every subsequent run request instead of forking
// a new process. The target reads the status region on descriptor 399 and
// restore requests on descriptor 400.
//
// Usage:
//
//	execsrv -p /usr/bin/qemu-system-x86_64 [flags] [target args...]
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tzfuzz/execsrv/pkg/config"
	"github.com/tzfuzz/execsrv/pkg/harness"
	"github.com/tzfuzz/execsrv/pkg/log"
	"github.com/tzfuzz/execsrv/pkg/osutil"
	"github.com/tzfuzz/execsrv/pkg/seccomp"
	"github.com/tzfuzz/execsrv/pkg/stat"
	"github.com/tzfuzz/execsrv/pkg/tool"
)

var (
	flagTarget = flag.String("p", "", "target executable")
	flagLog    = flag.String("l", "", "append log output to this file instead of stderr")
	flagConfig = flag.String("config", "", "optional YAML config file")
	flagHTTP   = flag.String("http", "", "serve Prometheus metrics on this address (e.g. localhost:8080)")
	flagStats  = flag.Duration("stats", 0, "period of stats log lines (0 disables them)")
	flagDump   = flag.String("dump-config", "", "write the effective config to this file and exit")
	flagDeny   tool.ListFlag
)

func init() {
	flag.Var(&flagDeny, "deny", "comma-separated syscalls that fail with EPERM in the target")
}

func main() {
	stopProfiling := tool.Init()
	cfg, err := loadConfig(flag.CommandLine, *flagConfig, flagValues{
		target: *flagTarget,
		log:    *flagLog,
		deny:   flagDeny,
		http:   *flagHTTP,
		stats:  *flagStats,
	})
	if err != nil {
		tool.Fail(err)
	}
	if *flagDump != "" {
		if err := config.SaveFile(*flagDump, cfg); err != nil {
			tool.Fail(err)
		}
		stopProfiling()
		return
	}
	code := run(cfg)
	stopProfiling()
	os.Exit(code)
}

func run(cfg *Config) int {
	if cfg.Log != "" {
		f, err := log.OpenFile(cfg.Log)
		if err != nil {
			log.Errorf("%v, logging to stderr", err)
		} else {
			defer f.Close()
		}
	}
	// A target that cannot be executed is reported as exit status 127 on every run.
	if err := osutil.IsExecutable(cfg.Target); err != nil {
		log.Errorf("%v, every run will fail", err)
	}
	var filter *syscall.SockFprog
	if len(cfg.DenySyscalls) != 0 {
		var err error
		if filter, err = seccomp.DenyList(cfg.DenySyscalls); err != nil {
			log.Errorf("%v", err)
			return harness.ExitUsage
		}
	}
	h, err := harness.New(harness.Config{
		Target:     cfg.Target,
		Args:       cfg.Args,
		KillSignal: harness.KillSignalPolicyFromEnv(os.Getenv(harness.KillSignalEnv)),
		Seccomp:    filter,
	})
	if err != nil {
		log.Errorf("%v", err)
		return exitCode(err)
	}
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	set := h.Stats().Set
	if cfg.HTTP != "" {
		go serveHTTP(cfg.HTTP, set)
	}
	if cfg.StatsPeriod != 0 {
		go set.Heartbeat(ctx, cfg.StatsPeriod)
	}
	err = h.Serve(ctx)
	log.Logf(0, "%v", set.Format(stat.All))
	return exitCode(err)
}

func serveHTTP(addr string, set *stat.Set) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(set.Registry(), promhttp.HandlerOpts{}))
	log.Logf(0, "serving metrics on http://%v/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("failed to serve metrics: %v", err)
	}
}

func exitCode(err error) int {
	if err == nil {
		return harness.ExitControllerAbsent
	}
	var fatal *harness.FatalError
	if errors.As(err, &fatal) {
		return fatal.Code
	}
	return harness.ExitSetup
}
