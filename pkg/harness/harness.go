// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package harness implements the fork server control loop. Every cycle reads
// a run request from the controller, spawns or resumes the child, reports the
// pid, waits until the child stops or terminates and reports the result:
// the status region value for a stopped child, the raw wait status otherwise.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/tzfuzz/execsrv/pkg/child"
	"github.com/tzfuzz/execsrv/pkg/forkexec"
	"github.com/tzfuzz/execsrv/pkg/forksrv"
	"github.com/tzfuzz/execsrv/pkg/log"
	"github.com/tzfuzz/execsrv/pkg/restore"
	"github.com/tzfuzz/execsrv/pkg/status"
)

type Config struct {
	// Target is the executable to run, Args are its arguments after argv[0].
	Target string
	Args   []string
	// Env == nil means the harness environment.
	Env        []string
	KillSignal KillSignalPolicy
	Seccomp    *syscall.SockFprog
	// Conn defaults to the well-known controller descriptors.
	Conn *forksrv.Conn
	// Exit is called when a restore request cannot be delivered, defaults to os.Exit.
	Exit func(code int)
}

type Harness struct {
	cfg     Config
	conn    *forksrv.Conn
	region  *status.Region
	restore *restore.Channel
	child   *child.Manager
	stats   *Stats
	self    int
}

// cycle is the state of one request/pid/result exchange.
type cycle struct {
	// ControllerKilled is the request word: non-zero if the controller
	// killed the previous child on timeout.
	ControllerKilled uint32
	// Terminated is set if the child exited or was killed during this cycle.
	Terminated bool
	Status     syscall.WaitStatus
}

// New creates the status region and the restore channel.
// Errors are *FatalError with ExitSetup.
func New(cfg Config) (*Harness, error) {
	if cfg.Conn == nil {
		cfg.Conn = forksrv.Open()
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	h := &Harness{
		cfg:  cfg,
		conn: cfg.Conn,
		self: os.Getpid(),
	}
	var err error
	if h.region, err = status.Create(); err != nil {
		return nil, &FatalError{Code: ExitSetup, Err: fmt.Errorf("failed to create status region: %w", err)}
	}
	if h.restore, err = restore.New(); err != nil {
		h.region.Close()
		return nil, &FatalError{Code: ExitSetup, Err: err}
	}
	h.child, err = child.NewManager(child.Config{
		Target:  cfg.Target,
		Args:    cfg.Args,
		Env:     cfg.Env,
		Region:  h.region,
		Restore: h.restore,
		Seccomp: cfg.Seccomp,
	})
	if err != nil {
		h.Close()
		return nil, &FatalError{Code: ExitSetup, Err: err}
	}
	h.stats = NewStats(func() int { return int(h.restore.Notified()) })
	return h, nil
}

func (h *Harness) Stats() *Stats {
	return h.stats
}

// Serve runs the session until a fatal error. It returns nil if the
// controller does not answer the handshake, and a *FatalError otherwise.
// Restore requests are forwarded for as long as ctx is not done.
func (h *Harness) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	forwarding := restore.Forward(ctx, h.restore, func(err error) {
		log.Errorf("failed to deliver restore request: %v", err)
		h.child.Abort()
		h.cfg.Exit(ExitRestore)
	})
	defer func() {
		cancel()
		<-forwarding
	}()
	if err := h.conn.Hello(); err != nil {
		log.Logf(0, "controller does not want to talk, exiting: %v", err)
		return nil
	}
	log.Logf(0, "fork server is up (target %v, report own pid: %v)",
		h.cfg.Target, h.cfg.KillSignal.ReportsSelf())
	return h.Loop()
}

// Loop serves cycles until one of them fails.
func (h *Harness) Loop() error {
	for {
		if err := h.runCycle(); err != nil {
			log.Errorf("%v", err)
			return err
		}
	}
}

func (h *Harness) runCycle() *FatalError {
	var c cycle
	req, err := h.conn.ReadRequest()
	if err != nil {
		return &FatalError{Code: ExitReadRequest, Err: err}
	}
	start := time.Now()
	c.ControllerKilled = req
	h.stats.Requests.Add(1)
	if c.ControllerKilled != 0 {
		log.Logf(2, "controller killed the previous child")
	}

	resumed, err := h.child.Run()
	var childErr *forkexec.ChildError
	switch {
	case err == nil:
	case errors.As(err, &childErr) && h.child.State() == child.Running:
		// Reported as a normal termination below.
		h.stats.ExecFailures.Add(1)
	default:
		return &FatalError{Code: ExitChild, Err: err}
	}
	if resumed {
		h.stats.Resumes.Add(1)
	} else {
		h.stats.Spawns.Add(1)
	}

	pid := h.cfg.KillSignal.ReportedPid(h.self, h.child.Pid())
	if err := h.conn.WritePid(pid); err != nil {
		return &FatalError{Code: ExitChild, Err: err}
	}

	ev, err := h.child.Wait()
	if err != nil {
		return &FatalError{Code: ExitWait, Err: err}
	}
	result := uint32(h.region.Value())
	if ev.Terminated {
		c.Terminated = true
		c.Status = ev.Status
		result = uint32(c.Status)
		h.stats.Terminations.Add(1)
	} else {
		log.Logf(2, "child os state = %v", int32(result))
	}
	if err := h.conn.WriteResult(result); err != nil {
		return &FatalError{Code: ExitWait, Err: err}
	}
	h.stats.Cycles.Add(1)
	h.stats.Latency.Add(int(time.Since(start) / time.Microsecond))
	return nil
}

// Close kills a live child and releases the status region and the restore channel.
func (h *Harness) Close() error {
	var errs []error
	if h.child != nil {
		errs = append(errs, h.child.Kill())
	}
	errs = append(errs, h.restore.Close())
	errs = append(errs, h.region.Close())
	return errors.Join(errs...)
}
