// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package restore carries "restore to snapshot" requests from the harness to
// its child. Requests are counted by an eventfd, so any number of requests
// made before the child reads the descriptor collapse into a single read.
package restore

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/tzfuzz/execsrv/pkg/log"
	"golang.org/x/sys/unix"
)

// Signal is the signal that asks for a restore.
const Signal = syscall.SIGUSR1

type Channel struct {
	file     *os.File
	notified atomic.Uint64
}

// New creates a blocking, counting eventfd. It is close-on-exec: the child
// gets its own copy at a fixed descriptor from the spawner.
func New() (*Channel, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("failed to create eventfd: %w", err)
	}
	return &Channel{file: os.NewFile(uintptr(fd), "restore-eventfd")}, nil
}

// FromFile wraps an inherited restore descriptor (child side).
func FromFile(f *os.File) *Channel {
	return &Channel{file: f}
}

func (ch *Channel) File() *os.File {
	return ch.file
}

// Notify adds one pending restore.
func (ch *Channel) Notify() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(int(ch.file.Fd()), buf[:]); err != nil {
		return fmt.Errorf("failed to write restore eventfd: %w", err)
	}
	ch.notified.Add(1)
	return nil
}

// Notified returns the number of successful Notify calls.
func (ch *Channel) Notified() uint64 {
	return ch.notified.Load()
}

// Consume blocks until at least one restore is pending and returns
// the number of requests accumulated since the previous Consume.
func (ch *Channel) Consume() (uint64, error) {
	var buf [8]byte
	for {
		n, err := unix.Read(int(ch.file.Fd()), buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read restore eventfd: %w", err)
		}
		if n != len(buf) {
			return 0, fmt.Errorf("short read from restore eventfd: %v", n)
		}
		return binary.NativeEndian.Uint64(buf[:]), nil
	}
}

// Pending reports whether Consume would return immediately.
func (ch *Channel) Pending() (bool, error) {
	fds := []unix.PollFd{{Fd: int32(ch.file.Fd()), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to poll restore eventfd: %w", err)
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}

func (ch *Channel) Close() error {
	return ch.file.Close()
}

// Forward notifies ch once for every Signal delivered to the process until
// ctx is done. A failed notification is passed to onFatal and forwarding stops:
// a lost restore would silently desynchronize the session.
// The returned channel is closed once the signal is no longer intercepted.
func Forward(ctx context.Context, ch *Channel, onFatal func(error)) <-chan struct{} {
	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, Signal)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if err := ch.Notify(); err != nil {
					onFatal(err)
					return
				}
				log.Logf(2, "restore requested")
			}
		}
	}()
	return done
}
