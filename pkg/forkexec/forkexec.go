// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package forkexec starts a child process with an exact descriptor layout.
//
// Unlike os.StartProcess, a failure after the child is cloned does not make
// Start fail: the child reports the failure over a close-on-exec socket and exits
// with ChildFailureExitCode, and Start returns its pid together with the
// *ChildError. The caller owns the pid and observes the exit with wait as usual.
package forkexec

import (
	"syscall"
)

const (
	// FdClose closes the descriptor in the child.
	FdClose = ^uintptr(0)
	// FdInherit leaves the descriptor in the child as it was in the parent.
	FdInherit = ^uintptr(0) - 1

	// ChildFailureExitCode is the exit status of a child that failed before execve.
	ChildFailureExitCode = 127
)

// Runner describes how to start the child.
type Runner struct {
	// Path is the executable passed to execve.
	Path string

	// argv and env for execve syscall for the child process.
	// Env == nil means the environment of the current process.
	Args []string
	Env  []string

	// Files maps child descriptor i to parent descriptor Files[i], or to
	// FdClose / FdInherit. Descriptors beyond len(Files) are inherited.
	Files []uintptr

	// Seccomp filter loaded right before execve, after prctl(PR_SET_NO_NEW_PRIVS, 1).
	Seccomp *syscall.SockFprog
}
