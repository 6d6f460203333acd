// Package perf implements a per-run timing ledger keyed by operation name.
// A Recorder is injected into every pipeline stage rather than living as
// ambient global state, and tolerates concurrent updates from parallel
// illustration workers.
package perf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// OpStats aggregates timings for one named operation.
type OpStats struct {
	Count    int           `json:"count"`
	Total    time.Duration `json:"-"`
	Last     time.Duration `json:"-"`
	Failures int           `json:"failures"`

	TotalMS int64 `json:"total_ms"`
	LastMS  int64 `json:"last_ms"`
	AvgMS   int64 `json:"avg_ms"`
}

// Avg returns the mean duration across recorded invocations.
func (s OpStats) Avg() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Report is a snapshot of all operation stats, keyed by operation name.
type Report map[string]OpStats

// Recorder is a concurrency-safe timing ledger for a single run.
type Recorder struct {
	mu  sync.Mutex
	ops map[string]*OpStats
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{ops: make(map[string]*OpStats)}
}

// Start begins timing the named operation and returns a done function. The
// done function records the elapsed duration and whether the operation
// failed; it must be called exactly once.
func (r *Recorder) Start(op string) func(failed bool) {
	start := time.Now()
	return func(failed bool) {
		r.Record(op, time.Since(start), failed)
	}
}

// Record adds one invocation of the named operation to the ledger.
func (r *Recorder) Record(op string, d time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := r.ops[op]
	if !ok {
		stats = &OpStats{}
		r.ops[op] = stats
	}
	stats.Count++
	stats.Total += d
	stats.Last = d
	if failed {
		stats.Failures++
	}
}

// Report returns a snapshot of the ledger. The snapshot is independent of
// the recorder; later updates do not affect it.
func (r *Recorder) Report() Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := make(Report, len(r.ops))
	for name, stats := range r.ops {
		snap := *stats
		snap.TotalMS = snap.Total.Milliseconds()
		snap.LastMS = snap.Last.Milliseconds()
		snap.AvgMS = snap.Avg().Milliseconds()
		report[name] = snap
	}
	return report
}

// WriteJSON persists the current report as operation_stats.json inside dir,
// creating dir if necessary. Returns the written path.
func (r *Recorder) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create performance dir: %w", err)
	}

	data, err := json.MarshalIndent(r.Report(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal performance report: %w", err)
	}

	path := filepath.Join(dir, "operation_stats.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write performance report: %w", err)
	}
	return path, nil
}
