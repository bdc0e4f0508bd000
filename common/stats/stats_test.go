package stats

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPrecisionChange(t *testing.T) {
	stat := DefaultStatsReceiver().(*defaultStatsReceiver)
	if stat.precision != time.Nanosecond {
		t.Fatal("Default precision should be nanos.")
	}

	statp := stat.Precision(time.Millisecond).(*defaultStatsReceiver)
	if stat.precision != time.Nanosecond {
		t.Fatal("Default precision should still nanos.")
	}
	if statp.precision != time.Millisecond {
		t.Fatal("New stat precision should be millis.")
	}
}

func TestScopeChange(t *testing.T) {
	stat := DefaultStatsReceiver().(*defaultStatsReceiver)
	if len(stat.scope) != 0 {
		t.Fatal("Default scope should be empty.")
	}

	statp := stat.Scope("a/b", "c").(*defaultStatsReceiver)
	if len(stat.scope) != 0 {
		t.Fatal("Default scope should still empty.")
	}
	if len(statp.scope) != 2 || statp.scope[0] != "a_SLASH_b" || statp.scope[1] != "c" {
		t.Fatal("Invalid scope value: ", statp.scope)
	}
	if statp.scopedName("d") != "a_SLASH_b/c/d" {
		t.Fatal("Invalid scope name: " + statp.scopedName("d"))
	}
}

func TestRender(t *testing.T) {
	Time = NewTestTime(time.Unix(0, 0), 5*time.Millisecond)
	defer func() { Time = defaultStatsTime{} }()

	stat := DefaultStatsReceiver().Scope("sched")
	stat.Counter(SchedDispatchAttempts).Inc(2)
	stat.Gauge(SchedQueuedJobs).Update(3)
	stat.Precision(time.Millisecond).Latency(SchedDispatchLatency_ms).Time().Stop()

	var rendered map[string]float64
	if err := json.Unmarshal(stat.Render(false), &rendered); err != nil {
		t.Fatalf("Couldn't parse rendered stats: %v", err)
	}
	expected := map[string]float64{
		"sched/dispatchAttempts":         2,
		"sched/queuedJobs":               3,
		"sched/dispatchLatency_ms.count": 1,
		"sched/dispatchLatency_ms.max":   5,
	}
	for k, v := range expected {
		if rendered[k] != v {
			t.Fatalf("Expected %s=%v, got %v in %v", k, v, rendered[k], rendered)
		}
	}
}

func TestNilReceiver(t *testing.T) {
	stat := NilStatsReceiver()
	stat.Scope("x").Counter("y").Inc(1)
	if string(stat.Render(true)) != "{}" {
		t.Fatalf("Expected empty render")
	}
}

func TestConcurrentTimers(t *testing.T) {
	stat := DefaultStatsReceiver().Precision(time.Millisecond)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			stat.Latency("run_ms").Time().Stop()
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	var rendered map[string]float64
	if err := json.Unmarshal(stat.Render(false), &rendered); err != nil {
		t.Fatalf("Couldn't parse rendered stats: %v", err)
	}
	if rendered["run_ms.count"] != 8 {
		t.Fatalf("Expected 8 samples, got %v", rendered["run_ms.count"])
	}
}
