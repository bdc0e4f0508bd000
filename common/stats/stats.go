// Package stats provides a small set of instrument interfaces backed by
// go-metrics. A StatsReceiver is passed down a call tree and scoped at each
// level, so the scheduler, agent and syncer each record under their own
// prefix in a single registry.
package stats

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
)

// Time is what latencies are measured with. Tests may replace it.
var Time StatsTime = defaultStatsTime{}

// StatsReceiver hands out named instruments from a shared registry.
//
// Names are joined with '/'. Slashes inside a name element are replaced by
// "_SLASH_" so scopes can't be forged.
type StatsReceiver interface {
	// Scope returns a receiver whose names are prefixed with scope.
	//
	//   stat.Scope("agent").Counter("jobsClosed")  // records "agent/jobsClosed"
	//
	Scope(scope ...string) StatsReceiver

	// Precision returns a receiver whose latencies render in units of precision.
	Precision(time.Duration) StatsReceiver

	Counter(name ...string) Counter
	Gauge(name ...string) Gauge
	Latency(name ...string) Latency

	// Render marshals every instrument in the registry as flat JSON.
	Render(pretty bool) []byte
}

// DefaultStatsReceiver records into a fresh registry.
func DefaultStatsReceiver() StatsReceiver {
	return &defaultStatsReceiver{
		registry:  &registry{metrics.NewRegistry()},
		precision: time.Nanosecond,
	}
}

type defaultStatsReceiver struct {
	registry  *registry
	precision time.Duration
	scope     []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{s.registry, s.precision, s.scoped(scope...)}
}

func (s *defaultStatsReceiver) Precision(precision time.Duration) StatsReceiver {
	if precision < 1 {
		precision = 1
	}
	return &defaultStatsReceiver{s.registry, precision, s.scope}
}

func (s *defaultStatsReceiver) Counter(name ...string) Counter {
	return s.registry.GetOrRegister(s.scopedName(name...), newCounter).(Counter)
}

func (s *defaultStatsReceiver) Gauge(name ...string) Gauge {
	return s.registry.GetOrRegister(s.scopedName(name...), newGauge).(Gauge)
}

func (s *defaultStatsReceiver) Latency(name ...string) Latency {
	// go-metrics can't type-assert a factory returning an interface, so the
	// latency is built eagerly and dropped if one is already registered.
	return s.registry.GetOrRegister(s.scopedName(name...), newLatency(s.precision)).(Latency)
}

func (s *defaultStatsReceiver) Render(pretty bool) []byte {
	data := s.registry.flatten()
	var bytes []byte
	var err error
	if pretty {
		bytes, err = json.MarshalIndent(data, "", "  ")
	} else {
		bytes, err = json.Marshal(data)
	}
	if err != nil {
		log.Errorf("Couldn't render stats: %v", err)
		return []byte("{}")
	}
	return bytes
}

func (s *defaultStatsReceiver) scoped(scope ...string) []string {
	scrubbed := make([]string, 0, len(s.scope)+len(scope))
	scrubbed = append(scrubbed, s.scope...)
	for _, elem := range scope {
		scrubbed = append(scrubbed, strings.Replace(elem, "/", "_SLASH_", -1))
	}
	return scrubbed
}

func (s *defaultStatsReceiver) scopedName(name ...string) string {
	return strings.Join(s.scoped(name...), "/")
}

// NilStatsReceiver ignores everything recorded through it.
func NilStatsReceiver(scope ...string) StatsReceiver {
	return nilStatsReceiver{}
}

type nilStatsReceiver struct{}

func (s nilStatsReceiver) Scope(scope ...string) StatsReceiver   { return s }
func (s nilStatsReceiver) Precision(time.Duration) StatsReceiver { return s }
func (s nilStatsReceiver) Counter(name ...string) Counter        { return &counter{metrics.NilCounter{}} }
func (s nilStatsReceiver) Gauge(name ...string) Gauge            { return &gauge{metrics.NilGauge{}} }
func (s nilStatsReceiver) Latency(name ...string) Latency        { return nilLatency{} }
func (s nilStatsReceiver) Render(pretty bool) []byte             { return []byte("{}") }

type Counter interface {
	Count() int64
	Inc(int64)
}

type counter struct{ metrics.Counter }

func newCounter() Counter { return &counter{metrics.NewCounter()} }

// Gauge holds an int64 that can be set arbitrarily.
type Gauge interface {
	Update(int64)
	Value() int64
}

type gauge struct{ metrics.Gauge }

func newGauge() Gauge { return &gauge{metrics.NewGauge()} }

// Latency records durations into a histogram.
//
//	defer stat.Latency("execLatency_ms").Time().Stop()
type Latency interface {
	// Time starts timing one interval.
	Time() Timer
}

// Timer records the interval since it was started when stopped.
type Timer interface {
	Stop()
}

type latency struct {
	metrics.Histogram
	precision time.Duration
}

func newLatency(precision time.Duration) *latency {
	return &latency{Histogram: metrics.NewHistogram(metrics.NewUniformSample(1000)), precision: precision}
}

func (l *latency) Time() Timer { return &timer{l, Time.Now()} }

type timer struct {
	l     *latency
	start time.Time
}

func (t *timer) Stop() { t.l.Update(Time.Since(t.start).Nanoseconds()) }

type nilLatency struct{}

func (nilLatency) Time() Timer { return nilLatency{} }
func (nilLatency) Stop()       {}

// registry renders metrics Finagle style: one flat key per value, with
// histograms expanded into avg/count/max/min/sum and percentiles.
type registry struct {
	metrics.Registry
}

var percentiles = []float64{0.5, 0.9, 0.99}
var percentileLabels = []string{"p50", "p90", "p99"}

func (r *registry) flatten() map[string]interface{} {
	data := make(map[string]interface{})
	r.Each(func(name string, i interface{}) {
		switch stat := i.(type) {
		case Counter:
			data[name] = stat.Count()
		case Gauge:
			data[name] = stat.Value()
		case *latency:
			hist := stat.Histogram.Snapshot()
			f64p, i64p := float64(stat.precision), int64(stat.precision)
			data[name+".avg"] = hist.Mean() / f64p
			data[name+".count"] = hist.Count()
			data[name+".max"] = hist.Max() / i64p
			data[name+".min"] = hist.Min() / i64p
			data[name+".sum"] = hist.Sum() / i64p
			for i, p := range hist.Percentiles(percentiles) {
				data[name+"."+percentileLabels[i]] = p / f64p
			}
		default:
			log.Infof("Unrecognized instrument %s: %T", name, i)
		}
	})
	return data
}

// StatsTime is the clock latencies are measured with.
type StatsTime interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type defaultStatsTime struct{}

func (defaultStatsTime) Now() time.Time                  { return time.Now() }
func (defaultStatsTime) Since(t time.Time) time.Duration { return time.Since(t) }

type testStatsTime struct {
	now   time.Time
	since time.Duration
}

func (t testStatsTime) Now() time.Time                { return t.now }
func (t testStatsTime) Since(time.Time) time.Duration { return t.since }

// NewTestTime is a clock stuck at now for which every interval is since.
func NewTestTime(now time.Time, since time.Duration) StatsTime {
	return testStatsTime{now, since}
}
