// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package harness

import (
	"github.com/tzfuzz/execsrv/pkg/stat"
)

type Stats struct {
	Set          *stat.Set
	Requests     *stat.Val
	Cycles       *stat.Val
	Spawns       *stat.Val
	Resumes      *stat.Val
	Terminations *stat.Val
	ExecFailures *stat.Val
	Restores     *stat.Val
	Latency      *stat.Val
}

// NewStats creates the harness metrics. restores reads the number of
// forwarded restore requests.
func NewStats(restores func() int) *Stats {
	set := stat.NewSet()
	return &Stats{
		Set: set,
		Requests: set.New("requests", "Run requests read from the controller", stat.Counter{},
			stat.Prometheus("execsrv_requests_total")),
		Cycles: set.New("execs", "Completed fork server cycles", stat.Console, stat.Rate{},
			stat.Prometheus("execsrv_execs_total")),
		Spawns: set.New("spawns", "Child processes created", stat.Console, stat.Counter{},
			stat.Prometheus("execsrv_spawns_total")),
		Resumes: set.New("resumes", "Stopped children resumed", stat.Counter{},
			stat.Prometheus("execsrv_resumes_total")),
		Terminations: set.New("terminations", "Children that exited or were killed", stat.Console, stat.Counter{},
			stat.Prometheus("execsrv_terminations_total")),
		ExecFailures: set.New("exec failures", "Children that failed before exec", stat.Console, stat.Counter{},
			stat.Prometheus("execsrv_exec_failures_total")),
		Restores: set.New("restores", "Restore requests forwarded to the child", stat.Console, stat.Counter{},
			stat.Prometheus("execsrv_restores_total"), restores),
		Latency: set.New("latency us", "Microseconds from run request to result", stat.Console,
			stat.Distribution{}),
	}
}
