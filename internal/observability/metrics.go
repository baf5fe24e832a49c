package observability

import (
	"sync"
)

// Metrics provides basic in-memory counters for the background passes.
type Metrics struct {
	mu           sync.Mutex
	passRuns     map[string]int64
	passFailures map[string]int64
	tickets      map[string]int64
	breaches     int64
	conflicts    int64
	scans        map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		passRuns:     make(map[string]int64),
		passFailures: make(map[string]int64),
		tickets:      make(map[string]int64),
		scans:        make(map[string]int64),
	}
}

// RecordPass counts a completed pass run.
func (m *Metrics) RecordPass(pass string, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passRuns[pass]++
	if failed {
		m.passFailures[pass]++
	}
}

// RecordTicketEvaluated counts a per-ticket evaluation in a pass.
func (m *Metrics) RecordTicketEvaluated(pass string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[pass]++
}

// RecordBreach counts an emitted SLA breach event.
func (m *Metrics) RecordBreach() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaches++
}

// RecordConflict counts an optimistic-concurrency retry.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

// RecordScan counts a scan outcome by verdict.
func (m *Metrics) RecordScan(status string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[status]++
}

// Snapshot returns a copy of all counters for the health endpoint.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for pass, count := range m.passRuns {
		out["pass_runs:"+pass] = count
	}
	for pass, count := range m.passFailures {
		out["pass_failures:"+pass] = count
	}
	for pass, count := range m.tickets {
		out["tickets_evaluated:"+pass] = count
	}
	for status, count := range m.scans {
		out["scans:"+status] = count
	}
	out["sla_breaches"] = m.breaches
	out["conflict_retries"] = m.conflicts
	return out
}
