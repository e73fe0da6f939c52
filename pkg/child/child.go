// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package child manages the single target process of a fork server session.
//
// The child is spawned on the first run request, stops itself with SIGSTOP at
// its rendezvous point and is resumed with SIGCONT followed by exactly one post
// of the status region semaphore. Once it exits or is killed by a signal, the
// next run request spawns a fresh one.
package child

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/tzfuzz/execsrv/pkg/forkexec"
	"github.com/tzfuzz/execsrv/pkg/forksrv"
	"github.com/tzfuzz/execsrv/pkg/log"
	"github.com/tzfuzz/execsrv/pkg/osutil"
	"github.com/tzfuzz/execsrv/pkg/restore"
	"github.com/tzfuzz/execsrv/pkg/status"
)

type State int

const (
	NotSpawned State = iota
	Running
	Stopped
	Terminated
)

func (s State) String() string {
	switch s {
	case NotSpawned:
		return "not spawned"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	// Target is the executable, Args are the arguments after argv[0].
	// argv[0] is the base name of Target.
	Target string
	Args   []string
	// Env == nil means the environment of the harness.
	Env []string

	Region *status.Region
	// Restore is optional, the child gets no restore descriptor without it.
	Restore *restore.Channel
	Seccomp *syscall.SockFprog
}

type Manager struct {
	runner *forkexec.Runner
	region *status.Region
	pid    int
	state  State
	// live mirrors pid for Abort.
	live atomic.Int64
}

// Event describes how the child's state changed.
type Event struct {
	Stopped    bool
	Terminated bool
	// Status is the raw wait status.
	Status syscall.WaitStatus
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Region == nil {
		return nil, fmt.Errorf("no status region")
	}
	files := make([]uintptr, forksrv.RestoreFd+1)
	for i := range files {
		files[i] = forkexec.FdInherit
	}
	files[forksrv.ControlFd] = forkexec.FdClose
	files[forksrv.StatusFd] = forkexec.FdClose
	files[forksrv.StatusRegionFd] = cfg.Region.File().Fd()
	if cfg.Restore != nil {
		files[forksrv.RestoreFd] = cfg.Restore.File().Fd()
	}
	m := &Manager{
		runner: &forkexec.Runner{
			Path:    cfg.Target,
			Args:    append([]string{filepath.Base(cfg.Target)}, cfg.Args...),
			Env:     cfg.Env,
			Files:   files,
			Seccomp: cfg.Seccomp,
		},
		region: cfg.Region,
	}
	return m, nil
}

func (m *Manager) Pid() int {
	return m.pid
}

func (m *Manager) State() State {
	return m.state
}

// Run makes the child runnable: spawns a new one if there is none,
// or resumes the stopped one. resumed tells which of the two happened.
// If the new child failed before exec, Run returns a *forkexec.ChildError;
// the child is tracked as Running and its exit is reported by Wait.
// Any other error means the child could not be made runnable.
func (m *Manager) Run() (resumed bool, err error) {
	switch m.state {
	case NotSpawned, Terminated:
		return false, m.spawn()
	case Stopped:
		return true, m.resume()
	default:
		return false, fmt.Errorf("child %v is already running", m.pid)
	}
}

func (m *Manager) spawn() error {
	pid, err := m.runner.Start()
	var childErr *forkexec.ChildError
	if err != nil && (pid == 0 || !errors.As(err, &childErr)) {
		return fmt.Errorf("failed to spawn %v: %w", m.runner.Path, err)
	}
	m.pid = pid
	m.live.Store(int64(pid))
	m.state = Running
	if err != nil {
		log.Logf(0, "child %v failed to start %v: %v", pid, m.runner.Path, err)
		return err
	}
	log.Logf(1, "spawned child pid=%v", pid)
	return nil
}

func (m *Manager) resume() error {
	if err := syscall.Kill(m.pid, syscall.SIGCONT); err != nil {
		return fmt.Errorf("failed to continue child %v: %w", m.pid, err)
	}
	m.state = Running
	log.Logf(2, "sent SIGCONT to %v", m.pid)
	if err := m.region.Release(); err != nil {
		return fmt.Errorf("failed to release status semaphore: %w", err)
	}
	return nil
}

// Wait blocks until the running child stops with SIGSTOP or terminates.
// Stops by other signals are not rendezvous points: the child is continued
// and waiting goes on.
func (m *Manager) Wait() (Event, error) {
	if m.state != Running {
		return Event{}, fmt.Errorf("no running child (%v)", m.state)
	}
	for {
		ws, err := osutil.Wait4(m.pid, syscall.WUNTRACED)
		if err != nil {
			return Event{}, fmt.Errorf("failed to wait for child %v: %w", m.pid, err)
		}
		switch {
		case ws.Stopped() && ws.StopSignal() == syscall.SIGSTOP:
			m.state = Stopped
			log.Logf(2, "child %v stopped", m.pid)
			return Event{Stopped: true, Status: ws}, nil
		case ws.Stopped():
			log.Logf(0, "child %v %v, continuing", m.pid, osutil.FormatWaitStatus(ws))
			if err := syscall.Kill(m.pid, syscall.SIGCONT); err != nil {
				return Event{}, fmt.Errorf("failed to continue child %v: %w", m.pid, err)
			}
		case ws.Exited() || ws.Signaled():
			log.Logf(1, "child %v %v", m.pid, osutil.FormatWaitStatus(ws))
			m.pid = 0
			m.live.Store(0)
			m.state = Terminated
			return Event{Terminated: true, Status: ws}, nil
		}
	}
}

// Kill kills and reaps the child if there is one.
func (m *Manager) Kill() error {
	if m.state != Running && m.state != Stopped {
		return nil
	}
	pid := m.pid
	m.pid = 0
	m.live.Store(0)
	m.state = Terminated
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill child %v: %w", pid, err)
	}
	for {
		ws, err := osutil.Wait4(pid, 0)
		if err != nil {
			return fmt.Errorf("failed to wait for child %v: %w", pid, err)
		}
		if ws.Exited() || ws.Signaled() {
			return nil
		}
	}
}

// Abort sends SIGKILL to the live child, if any, without reaping it.
// Unlike the rest of the methods it may be called from any goroutine.
func (m *Manager) Abort() {
	pid := int(m.live.Load())
	if pid <= 0 {
		return
	}
	log.Logf(0, "killing child %v", pid)
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		log.Errorf("failed to kill child %v: %v", pid, err)
	}
}
