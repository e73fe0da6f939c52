// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package target implements the child side of the execsrv contract.
// It is what an emulator does at its rendezvous point: publish a value in the
// status region, stop with SIGSTOP, wait for the semaphore after SIGCONT and
// honor pending restore requests.
package target

import (
	"flag"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/tzfuzz/execsrv/pkg/forksrv"
	"github.com/tzfuzz/execsrv/pkg/log"
	"github.com/tzfuzz/execsrv/pkg/restore"
	"github.com/tzfuzz/execsrv/pkg/status"
	"golang.org/x/sys/unix"
)

type Options struct {
	// Value is published before the first stop and incremented on every run.
	Value int32
	// Runs is the number of stops before finishing; 0 means never finish.
	Runs int
	// Signal kills the process with the given signal when finished,
	// otherwise it exits with ExitCode.
	Signal   syscall.Signal
	ExitCode int
}

// Main parses args and runs the target. It returns the exit code.
func Main(args []string) int {
	flags := flag.NewFlagSet("execsrv-target", flag.ContinueOnError)
	value := flags.Int("value", 0, "value published in the status region on the first run")
	runs := flags.Int("runs", 0, "number of runs before finishing (0 - run forever)")
	sig := flags.Int("signal", 0, "kill self with this signal when finished")
	exitCode := flags.Int("exit", 0, "exit code when finished")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	opts := Options{
		Value:    int32(*value),
		Runs:     *runs,
		Signal:   syscall.Signal(*sig),
		ExitCode: *exitCode,
	}
	if err := Run(opts); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	if opts.Signal != 0 {
		if err := syscall.Kill(os.Getpid(), opts.Signal); err != nil {
			log.Errorf("failed to kill self: %v", err)
			return 1
		}
		for {
			time.Sleep(time.Second)
		}
	}
	return opts.ExitCode
}

// Run performs opts.Runs runs, each ending with a stop. A pending restore
// request brings the published value back to opts.Value.
func Run(opts Options) error {
	region, err := status.Open(os.NewFile(forksrv.StatusRegionFd, "status-region"))
	if err != nil {
		return fmt.Errorf("failed to open status region: %w", err)
	}
	defer region.Close()
	var rest *restore.Channel
	if _, err := unix.FcntlInt(forksrv.RestoreFd, unix.F_GETFD, 0); err == nil {
		rest = restore.FromFile(os.NewFile(forksrv.RestoreFd, "restore"))
	}
	value := opts.Value
	for run := 0; opts.Runs == 0 || run < opts.Runs; run++ {
		region.SetValue(value)
		if err := syscall.Kill(os.Getpid(), syscall.SIGSTOP); err != nil {
			return fmt.Errorf("failed to stop: %w", err)
		}
		if err := region.Wait(); err != nil {
			return err
		}
		value++
		if rest == nil {
			continue
		}
		pending, err := rest.Pending()
		if err != nil {
			return err
		}
		if !pending {
			continue
		}
		n, err := rest.Consume()
		if err != nil {
			return err
		}
		log.Logf(1, "restoring snapshot (%v requests)", n)
		value = opts.Value
	}
	return nil
}
