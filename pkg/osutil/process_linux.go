// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package osutil

import (
	"fmt"
	"syscall"
)

// Wait4 is syscall.Wait4 restarted on EINTR.
func Wait4(pid, options int) (syscall.WaitStatus, error) {
	var status syscall.WaitStatus
	for {
		_, err := syscall.Wait4(pid, &status, options, nil)
		if err == syscall.EINTR {
			continue
		}
		return status, err
	}
}

// FormatWaitStatus describes a raw wait status for logs.
func FormatWaitStatus(status syscall.WaitStatus) string {
	switch {
	case status.Exited():
		return fmt.Sprintf("exited with status %v", status.ExitStatus())
	case status.Signaled():
		res := fmt.Sprintf("killed by signal %v (%v)", int(status.Signal()), status.Signal())
		if status.CoreDump() {
			res += ", core dumped"
		}
		return res
	case status.Stopped():
		return fmt.Sprintf("stopped by signal %v (%v)", int(status.StopSignal()), status.StopSignal())
	case status.Continued():
		return "continued"
	default:
		return fmt.Sprintf("unknown status 0x%x", uint32(status))
	}
}
