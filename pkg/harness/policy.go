// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"strconv"
	"strings"
	"syscall"

	"github.com/tzfuzz/execsrv/pkg/log"
)

// KillSignalEnv is the controller setting that selects the signal it kills
// the reported pid with on timeout.
const KillSignalEnv = "AFL_KILL_SIGNAL"

// KillSignalPolicy decides which pid is reported to the controller.
// If the controller kills with SIGUSR1, the harness reports its own pid so that
// the kill turns into a restore request instead of terminating the child.
type KillSignalPolicy struct {
	Signal syscall.Signal
}

// KillSignalPolicyFromEnv parses the value of AFL_KILL_SIGNAL.
// Anything that is not a number selects no signal.
func KillSignalPolicyFromEnv(val string) KillSignalPolicy {
	val = strings.TrimSpace(val)
	if val == "" {
		return KillSignalPolicy{}
	}
	sig, err := strconv.Atoi(val)
	if err != nil {
		log.Logf(0, "ignoring non-numeric %v=%q", KillSignalEnv, val)
		return KillSignalPolicy{}
	}
	return KillSignalPolicy{Signal: syscall.Signal(sig)}
}

// ReportsSelf is true when kills must be redirected to the harness.
func (p KillSignalPolicy) ReportsSelf() bool {
	return p.Signal == syscall.SIGUSR1
}

// ReportedPid returns the pid to report for the child.
func (p KillSignalPolicy) ReportedPid(self, child int) int {
	if p.ReportsSelf() {
		return self
	}
	return child
}
