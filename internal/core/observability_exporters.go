package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"genesim/pkg/domain"
)

type cycleKey struct{}

// WithCycle tags ctx with the zero-based cycle being executed. Spans started
// under it carry the cycle number.
func WithCycle(ctx context.Context, cycle int) context.Context {
	return context.WithValue(ctx, cycleKey{}, cycle)
}

// CycleFromContext returns the cycle set by WithCycle.
func CycleFromContext(ctx context.Context) (int, bool) {
	c, ok := ctx.Value(cycleKey{}).(int)
	return c, ok
}

var expvarSeq uint64

// OperationTotals aggregates every observation of one operation.
type OperationTotals struct {
	Calls   int64   `json:"calls"`
	Errors  int64   `json:"errors"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// CycleTotals accumulates population events over a run.
type CycleTotals struct {
	Cycles     int64 `json:"cycles"`
	Births     int64 `json:"births"`
	Deaths     int64 `json:"deaths"`
	Homed      int64 `json:"homed"`
	Transfers  int64 `json:"transfers"`
	Violations int64 `json:"violations"`
	Population int   `json:"population"`
}

// ExpvarMetricsSnapshot is a read-only view of an ExpvarMetricsRecorder.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationTotals `json:"operations"`
	Totals     CycleTotals                `json:"cycle_totals"`
	RecordedAt time.Time                  `json:"recorded_at"`
}

// ExpvarMetricsRecorder keeps phase timings and cycle totals in process and
// publishes them via expvar. Debug runs log its snapshot when they finish.
type ExpvarMetricsRecorder struct {
	name   string
	mu     sync.Mutex
	ops    map[string]OperationTotals
	totals CycleTotals
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated genesim_metrics_<n> name when name is empty.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("genesim_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]OperationTotals)}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot copies the current totals.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExpvarMetricsSnapshot{
		Operations: maps.Clone(r.ops),
		Totals:     r.totals,
		RecordedAt: time.Now().UTC(),
	}
}

// Observe records a phase or run outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.ops[operation]
	t.Calls++
	if !success {
		t.Errors++
	}
	t.TotalMS += ms
	t.MaxMS = max(t.MaxMS, ms)
	r.ops[operation] = t
}

// ObserveCycle accumulates the events of a cycle and keeps the closing
// population size.
func (r *ExpvarMetricsRecorder) ObserveCycle(stats domain.CycleStats, violations domain.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals.Cycles++
	r.totals.Births += int64(stats.Births)
	r.totals.Deaths += int64(stats.Deaths)
	r.totals.Homed += int64(stats.HomedOut)
	r.totals.Transfers += int64(stats.Transfers)
	r.totals.Violations += int64(len(violations.Violations))
	r.totals.Population = stats.PopulationSize
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Cycle      *int      `json:"cycle,omitempty"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes one JSON line per span and retains the entries.
// Debug runs attach one to stderr.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer writes to w; a nil w only retains entries.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	span := &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
	if c, ok := CycleFromContext(ctx); ok {
		span.cycle = &c
	}
	return ctx, span
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	cycle     *int
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Cycle:      s.cycle,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}
