// Copyright 2026 execsrv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tzfuzz/execsrv/pkg/log"
)

// This file provides prometheus/streamz style metrics (Val type) for instrumenting code for monitoring.
// It also provides a registry for such metrics (Set type) that owns a Prometheus registry.
//
// Simple uses of metrics:
//
//	statFoo := set.New("metric name", "metric description")
//	statFoo.Add(1)
//
//	set.New("metric name", "metric description", Rate{}, Prometheus("metric_name"))
//
// The heartbeat log line and the /metrics endpoint read values with Collect and Registry.

type UI struct {
	Name  string
	Desc  string
	Level Level
	Value string
	V     int
}

type Set struct {
	mu        sync.Mutex
	vals      map[string]*Val
	nextOrder atomic.Uint64
	start     time.Time
	registry  *prometheus.Registry
}

const histogramBuckets = 255

func NewSet() *Set {
	return &Set{
		vals:     make(map[string]*Val),
		start:    time.Now(),
		registry: prometheus.NewRegistry(),
	}
}

// Registry holds the metrics created with the Prometheus option.
func (s *Set) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Set) Collect(level Level) []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := time.Since(s.start)
	if period < time.Second {
		period = time.Second
	}
	var res []UI
	for _, v := range s.vals {
		if v.level < level {
			continue
		}
		val := v.Val()
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Level: v.level,
			Value: v.fmt(val, period),
			V:     val,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Level != res[j].Level {
			return res[i].Level > res[j].Level
		}
		return s.vals[res[i].Name].order < s.vals[res[j].Name].order
	})
	return res
}

// Heartbeat logs Console level metrics every period until ctx is done.
func (s *Set) Heartbeat(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Logf(0, "%v", s.Format(Console))
		}
	}
}

// Format renders metrics of the level as a single "name=value" line.
func (s *Set) Format(level Level) string {
	var parts []string
	for _, stat := range s.Collect(level) {
		parts = append(parts, fmt.Sprintf("%v=%v", stat.Name, stat.Value))
	}
	return strings.Join(parts, " ")
}

// Additional options for Val metrics.

// Level controls if the metric should be printed to console in periodic heartbeat logs.
type Level int

const (
	All Level = iota
	Console
)

// Prometheus exports the metric to Prometheus under the given name.
type Prometheus string

// Rate says to report metric rate per unit of time along with the total value.
type Rate struct{}

// Counter says the value never decreases, it is exported as a Prometheus counter.
// Rate implies Counter.
type Counter struct{}

// Distribution says to collect histogram of individual sample distributions.
type Distribution struct{}

// Addittionally a custom 'func() int' can be passed to read the metric value from the function.
// and 'func(int, time.Duration) string' can be passed for custom formatting of the metric value.

func (s *Set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name:  name,
		desc:  desc,
		order: s.nextOrder.Add(1),
		fmt:   func(v int, period time.Duration) string { return strconv.Itoa(v) },
	}
	var promName string
	for _, o := range opts {
		switch opt := o.(type) {
		case Level:
			v.level = opt
		case Rate:
			v.rate = true
			v.counter = true
			v.fmt = formatRate
		case Counter:
			v.counter = true
		case Distribution:
			v.hist = true
			v.fmt = v.formatDistribution
		case func() int:
			v.ext = opt
		case func(int, time.Duration) string:
			v.fmt = opt
		case Prometheus:
			promName = string(opt)
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	if promName != "" {
		// Prometheus Instrumentation https://prometheus.io/docs/guides/go-application.
		var collector prometheus.Collector
		if v.counter {
			collector = prometheus.NewCounterFunc(prometheus.CounterOpts{
				Name: promName,
				Help: desc,
			}, func() float64 { return float64(v.Val()) })
		} else {
			collector = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: promName,
				Help: desc,
			}, func() float64 { return float64(v.Val()) })
		}
		if err := s.registry.Register(collector); err != nil {
			panic(fmt.Sprintf("failed to register metric %v: %v", promName, err))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[name] = v
	return v
}

type Val struct {
	name    string
	desc    string
	level   Level
	order   uint64
	val     atomic.Uint64
	ext     func() int
	fmt     func(int, time.Duration) string
	rate    bool
	counter bool
	hist    bool
	histMu  sync.Mutex
	histVal *gohistogram.NumericHistogram
}

func (v *Val) Add(val int) {
	if v.ext != nil {
		panic(fmt.Sprintf("stat %v is in external mode", v.name))
	}
	if v.hist {
		v.histMu.Lock()
		if v.histVal == nil {
			v.histVal = gohistogram.NewHistogram(histogramBuckets)
		}
		v.histVal.Add(float64(val))
		v.histMu.Unlock()
		return
	}
	v.val.Add(uint64(val))
}

// Val returns the value; the mean for distributions.
func (v *Val) Val() int {
	if v.ext != nil {
		return v.ext()
	}
	if v.hist {
		v.histMu.Lock()
		defer v.histMu.Unlock()
		if v.histVal == nil {
			return 0
		}
		return int(v.histVal.Mean())
	}
	return int(v.val.Load())
}

// Quantile is only meaningful for distributions.
func (v *Val) Quantile(q float64) int {
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return int(v.histVal.Quantile(q))
}

func (v *Val) formatDistribution(mean int, period time.Duration) string {
	return fmt.Sprintf("%v (p50 %v, p90 %v)", mean, v.Quantile(0.5), v.Quantile(0.9))
}

func formatRate(v int, period time.Duration) string {
	secs := int(period.Seconds())
	if x := v / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/sec)", v, x)
	}
	if x := v * 60 / secs; x >= 10 {
		return fmt.Sprintf("%v (%v/min)", v, x)
	}
	x := v * 60 * 60 / secs
	return fmt.Sprintf("%v (%v/hour)", v, x)
}
