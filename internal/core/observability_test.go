package core

import (
	"bytes"
	"context"
	"errors"
	"expvar"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"genesim/pkg/domain"
)

const (
	entryStatusSuccess = "success"
	entryStatusError   = "error"
)

func TestNoopObservabilityDoesNotPanic(_ *testing.T) {
	logger := noopLogger{}
	logger.Debug("debug", "key", "value")
	logger.Info("info", "key", "value")
	logger.Warn("warn", "key", "value")
	logger.Error("error", "key", "value")

	noopMetrics{}.Observe(context.Background(), "op", true, time.Millisecond)
	_, span := noopTracer{}.Start(context.Background(), "op")
	span.End(errors.New("ignored"))
}

func TestNewSlogLoggerFallsBackToDefault(t *testing.T) {
	if NewSlogLogger(nil).l != slog.Default() {
		t.Fatalf("expected slog default logger")
	}
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	logger.Info("hidden")
	logger.Warn("shown", "breeder", 3)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "breeder=3") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}

func TestExpvarMetricsRecorderExports(t *testing.T) {
	recorder := NewExpvarMetricsRecorder("")
	if recorder.Name() == "" {
		t.Fatalf("expected recorder to have export name")
	}
	recorder.Observe(context.Background(), "cycle.pairing", true, 10*time.Millisecond)
	recorder.Observe(context.Background(), "cycle.pairing", false, 5*time.Millisecond)
	recorder.Observe(context.Background(), "", true, time.Second)
	recorder.ObserveCycle(domain.CycleStats{PopulationSize: 12, Births: 4, Deaths: 1, HomedOut: 2, Transfers: 1}, domain.Result{})
	recorder.ObserveCycle(domain.CycleStats{PopulationSize: 9, Births: 1, Deaths: 3}, domain.Result{Violations: []domain.Violation{{Rule: "breeder_capacity"}}})

	snapshot := recorder.Snapshot()
	pairing, ok := snapshot.Operations["cycle.pairing"]
	if !ok || len(snapshot.Operations) != 1 {
		t.Fatalf("unexpected operations snapshot=%+v", snapshot)
	}
	if pairing.Calls != 2 || pairing.Errors != 1 || pairing.TotalMS != 15 || pairing.MaxMS != 10 {
		t.Fatalf("unexpected pairing totals %+v", pairing)
	}
	want := CycleTotals{Cycles: 2, Births: 5, Deaths: 4, Homed: 2, Transfers: 1, Violations: 1, Population: 9}
	if snapshot.Totals != want {
		t.Fatalf("totals = %+v, want %+v", snapshot.Totals, want)
	}

	if v := expvar.Get(recorder.Name()); v == nil {
		t.Fatalf("expected expvar export to be registered")
	} else if !strings.Contains(v.String(), "cycle.pairing") {
		t.Fatalf("expected expvar output to contain operation: %s", v.String())
	}
}

func TestJSONTraceTracerExports(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "cycle.aging")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "cycle.retention")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two span entries, got %d", len(entries))
	}
	if entries[0].Operation != "cycle.aging" || entries[0].Status != entryStatusSuccess {
		t.Fatalf("unexpected span entry: %+v", entries[0])
	}
	if entries[1].Status != entryStatusError || entries[1].Error != "boom" {
		t.Fatalf("unexpected error span entry: %+v", entries[1])
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected one JSON line per span, got %d", lines)
	}
	if !strings.Contains(buf.String(), "\"operation\":\"cycle.aging\"") {
		t.Fatalf("expected JSON output to contain operation: %q", buf.String())
	}
}

func TestJSONTraceTracerRecordsCycle(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(WithCycle(context.Background(), 4), "cycle.mating")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "simulation.run")
	span.End(nil)

	entries := tracer.Entries()
	if entries[0].Cycle == nil || *entries[0].Cycle != 4 {
		t.Fatalf("expected cycle 4 on phase span, got %+v", entries[0])
	}
	if entries[1].Cycle != nil {
		t.Fatalf("run span should carry no cycle: %+v", entries[1])
	}
	if !strings.Contains(buf.String(), `"cycle":4`) || strings.Count(buf.String(), `"cycle"`) != 1 {
		t.Fatalf("unexpected trace output %q", buf.String())
	}
}

func TestJSONTraceTracerWithoutWriter(t *testing.T) {
	tracer := NewJSONTracer(nil)
	_, span := tracer.Start(context.Background(), "op")
	span.End(nil)
	if len(tracer.Entries()) != 1 {
		t.Fatalf("expected retained entry")
	}
}

func TestPrometheusRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewPrometheusRecorder(registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	recorder.Observe(context.Background(), "cycle.pairing", true, 2*time.Millisecond)
	recorder.Observe(context.Background(), "cycle.pairing", false, time.Millisecond)
	recorder.ObserveCycle(domain.CycleStats{PopulationSize: 30, Births: 6, Deaths: 2, HomedOut: 3, Transfers: 1}, domain.Result{
		Violations: []domain.Violation{{Rule: "breeder_capacity", Severity: domain.SeverityWarn}},
	})
	recorder.ObserveCycle(domain.CycleStats{PopulationSize: 28, Births: 1}, domain.Result{})

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"pairing success", testutil.ToFloat64(recorder.operationsTotal.WithLabelValues("cycle.pairing", "success")), 1},
		{"pairing error", testutil.ToFloat64(recorder.operationsTotal.WithLabelValues("cycle.pairing", "error")), 1},
		{"births", testutil.ToFloat64(recorder.eventsTotal.WithLabelValues("birth")), 7},
		{"homed", testutil.ToFloat64(recorder.eventsTotal.WithLabelValues("homed")), 3},
		{"violations", testutil.ToFloat64(recorder.violationsTotal.WithLabelValues("breeder_capacity", "warn")), 1},
		{"population", testutil.ToFloat64(recorder.populationGauge), 28},
		{"cycles", testutil.ToFloat64(recorder.cyclesCompleted), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if n := testutil.CollectAndCount(recorder, "genesim_operation_duration_seconds"); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
	if _, err := NewPrometheusRecorder(registry); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestPrometheusDurationHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewPrometheusRecorder(registry)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	recorder.Observe(context.Background(), "simulation.run", true, 250*time.Millisecond)
	recorder.Observe(context.Background(), "simulation.run", true, 750*time.Millisecond)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() != "genesim_operation_duration_seconds" {
			continue
		}
		if mf.GetType() != dto.MetricType_HISTOGRAM {
			t.Fatalf("duration metric type = %v", mf.GetType())
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "operation" && lp.GetValue() == "simulation.run" {
					hist = m.GetHistogram()
				}
			}
		}
	}
	if hist == nil {
		t.Fatalf("simulation.run histogram not gathered")
	}
	if hist.GetSampleCount() != 2 {
		t.Fatalf("sample count = %d, want 2", hist.GetSampleCount())
	}
	if sum := hist.GetSampleSum(); sum < 0.999 || sum > 1.001 {
		t.Fatalf("sample sum = %v, want 1", sum)
	}
}
