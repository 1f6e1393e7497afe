package report

import (
	"context"
	"fmt"
	"io"
	"sync"

	"genesim/internal/core"
)

// FormatLine renders the one-line progress summary of a cycle. Cycles are
// shown one-based.
func FormatLine(r core.CycleReport) string {
	st := r.Stats
	return fmt.Sprintf("Cycle %5d/%5d | Created %7d | Living %6d | Pool %5d | Desired %5.1f%% | Births %5d | Deaths %5d | Homed %5d | M %5d | F %5d",
		st.Cycle+1, r.TotalCycles,
		r.Created,
		r.Living,
		st.EligibleMales+st.EligibleFemales,
		r.TargetShare*100,
		st.Births,
		st.Deaths,
		st.HomedOut,
		r.Males,
		r.Females,
	)
}

// Monitor prints FormatLine for every cycle it observes.
type Monitor struct {
	mu  sync.Mutex
	out io.Writer
	err error
}

// NewMonitor writes to out.
func NewMonitor(out io.Writer) *Monitor {
	return &Monitor{out: out}
}

// Observe satisfies core.CycleObserver.
func (m *Monitor) Observe(_ context.Context, r core.CycleReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return
	}
	if _, err := fmt.Fprintln(m.out, FormatLine(r)); err != nil {
		m.err = err
	}
}

// Err returns the first write error, after which the monitor goes silent.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}
