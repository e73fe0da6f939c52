// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package forkexec

import (
	"fmt"
	"os"
	"syscall"
	"unsafe" // required for go:linkname.

	"golang.org/x/sys/unix"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// Start clones the current process, sets up descriptors and execs Path in the child.
// A non-nil pid with a *ChildError means the child exists but failed before execve;
// it exits with ChildFailureExitCode and must still be waited for.
// Any other error means no child was created.
func (r *Runner) Start() (int, error) {
	if len(r.Args) == 0 {
		return 0, fmt.Errorf("empty argument list")
	}
	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	argv0, argv, envv, err := prepareExec(r.Path, r.Args, env)
	if err != nil {
		return 0, err
	}

	// p[0] is used by parent and p[1] is used by child.
	// Both ends are close-on-exec, so a successful execve is seen as EOF.
	p, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to create sync socket: %w", err)
	}

	pid, err1 := forkAndExecInChild(r, argv0, argv, envv, p)

	afterFork()
	syscall.ForkLock.Unlock()

	return syncWithChild(p, int(pid), err1)
}

func syncWithChild(p [2]int, pid int, err1 syscall.Errno) (int, error) {
	unix.Close(p[1])
	defer unix.Close(p[0])

	// clone syscall failed
	if err1 != 0 {
		return 0, &ChildError{Err: err1, Location: LocClone}
	}

	var childErr ChildError
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&childErr)), unsafe.Sizeof(childErr))
	for {
		n, err := unix.Read(p[0], buf)
		if err == unix.EINTR {
			continue
		}
		switch {
		case err != nil:
			// The child exists either way, let the caller reap it.
			errno, ok := err.(syscall.Errno)
			if !ok {
				errno = syscall.EIO
			}
			return pid, &ChildError{Err: errno, Location: LocExecve}
		case n == 0:
			return pid, nil
		case n != len(buf):
			return pid, &ChildError{Err: syscall.EPIPE, Location: LocExecve}
		}
		return pid, &childErr
	}
}

// prepareExec prepares execve parameters
func prepareExec(path string, args, env []string) (*byte, []*byte, []*byte, error) {
	argv0, err := syscall.BytePtrFromString(path)
	if err != nil {
		return nil, nil, nil, err
	}
	argv, err := syscall.SlicePtrFromStrings(args)
	if err != nil {
		return nil, nil, nil, err
	}
	envv, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		return nil, nil, nil, err
	}
	return argv0, argv, envv, nil
}

// prepareFds prepares fd array and the first descriptor that is free for temporaries.
func prepareFds(files []uintptr) ([]int, int) {
	fd := make([]int, len(files))
	nextfd := len(files)
	for i, ufd := range files {
		if nextfd < int(ufd) {
			nextfd = int(ufd)
		}
		fd[i] = int(ufd)
	}
	nextfd++
	return fd, nextfd
}
