// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"fmt"
)

// Exit codes of the harness process. They are part of the interface to
// scripts that supervise the harness and must not change.
const (
	ExitControllerAbsent = 0
	ExitUsage            = 1
	ExitReadRequest      = 4
	ExitChild            = 5
	ExitSetup            = 6
	ExitWait             = 7
	ExitRestore          = 255
)

// FatalError terminates the session. Code is the process exit code.
type FatalError struct {
	Code int
	Err  error
}

func (err *FatalError) Error() string {
	return fmt.Sprintf("%v (exit code %v)", err.Err, err.Code)
}

func (err *FatalError) Unwrap() error {
	return err.Err
}
