// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation is the step at which the child failed.
type ErrorLocation int

// ChildError is sent by the child over the sync socket.
// Its size is fixed since it is written from the child with a raw syscall.
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

const (
	LocClone ErrorLocation = iota + 1
	LocCloseRead
	LocDup3
	LocFcntl
	LocSetNoNewPrivs
	LocSeccomp
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_read",
	"dup3",
	"fcntl",
	"set_no_new_privs",
	"seccomp",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e *ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s(%d): %s", e.Location.String(), e.Index, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}

func (e *ChildError) Unwrap() error {
	return e.Err
}
