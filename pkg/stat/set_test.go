// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	set := NewSet()
	v0 := set.New("v0", "desc0")
	v0.Add(0)
	assert.Equal(t, 0, v0.Val())
	v0.Add(1)
	assert.Equal(t, 1, v0.Val())
	v0.Add(1)
	assert.Equal(t, 2, v0.Val())

	vv1 := 0
	v1 := set.New("v1", "desc1", Console, func() int { return vv1 })
	assert.Equal(t, 0, v1.Val())
	vv1 = 11
	assert.Equal(t, 11, v1.Val())
	assert.Panics(t, func() { v1.Add(1) })

	v2 := set.New("v2", "desc2", Console, func(v int, period time.Duration) string {
		return "custom"
	})
	v2.Add(3)

	ui := set.Collect(All)
	require.Len(t, ui, 3)
	assert.Equal(t, UI{Name: "v1", Desc: "desc1", Level: Console, Value: "11", V: 11}, ui[0])
	assert.Equal(t, UI{Name: "v2", Desc: "desc2", Level: Console, Value: "custom", V: 3}, ui[1])
	assert.Equal(t, UI{Name: "v0", Desc: "desc0", Level: All, Value: "2", V: 2}, ui[2])

	assert.Len(t, set.Collect(Console), 2)
	assert.Equal(t, "v1=11 v2=custom", set.Format(Console))
}

func TestRate(t *testing.T) {
	assert.Equal(t, "100 (10/sec)", formatRate(100, 10*time.Second))
	assert.Equal(t, "20 (12/min)", formatRate(20, 100*time.Second))
	assert.Equal(t, "1 (36/hour)", formatRate(1, 100*time.Second))
}

func TestDistribution(t *testing.T) {
	set := NewSet()
	v := set.New("latency", "cycle latency", Distribution{})
	assert.Equal(t, 0, v.Val())
	for i := 0; i < 10; i++ {
		v.Add(100)
	}
	assert.Equal(t, 100, v.Val())
	assert.Equal(t, 100, v.Quantile(0.5))
	assert.Equal(t, "latency=100 (p50 100, p90 100)", set.Format(All))
}

func TestPrometheus(t *testing.T) {
	set := NewSet()
	cycles := set.New("cycles", "Fork server cycles", Rate{}, Prometheus("execsrv_cycles_total"))
	set.New("value", "Status value", Prometheus("execsrv_status_value"), func() int { return 42 })
	spawns := set.New("spawns", "Children spawned", Counter{}, Prometheus("execsrv_spawns_total"))
	cycles.Add(5)
	spawns.Add(2)

	families, err := set.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 3)
	assert.Equal(t, "execsrv_cycles_total", families[0].GetName())
	assert.Equal(t, "Fork server cycles", families[0].GetHelp())
	assert.Equal(t, "COUNTER", families[0].GetType().String())
	assert.Equal(t, 5.0, families[0].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, "execsrv_spawns_total", families[1].GetName())
	assert.Equal(t, "COUNTER", families[1].GetType().String())
	assert.Equal(t, 2.0, families[1].GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, "execsrv_status_value", families[2].GetName())
	assert.Equal(t, "GAUGE", families[2].GetType().String())
	assert.Equal(t, 42.0, families[2].GetMetric()[0].GetGauge().GetValue())
	// Counter does not change the console format.
	assert.Equal(t, "2", spawns.fmt(spawns.Val(), time.Second))

	// Independent sets do not conflict.
	NewSet().New("cycles", "Fork server cycles", Prometheus("execsrv_cycles_total"))
	assert.Panics(t, func() {
		set.New("cycles2", "Fork server cycles", Prometheus("execsrv_cycles_total"))
	})
}
