// Package statusapi exposes the progress of the current run over HTTP so an
// operator (or a dashboard) can watch a long, throttled run.
package statusapi

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
)

// recentLimit bounds the rows kept for /status/rows.
const recentLimit = 50

// Run phases.
const (
	PhaseIdle     = "idle"
	PhaseRunning  = "running"
	PhaseFinished = "finished"
)

// Status is the JSON body of GET /status.
type Status struct {
	Phase   string            `json:"phase"`
	Summary domain.RunSummary `json:"summary"`
	LastRow int               `json:"last_row,omitempty"`
	Updated time.Time         `json:"updated_at"`
}

// Row is one entry of GET /status/rows. The phone number is masked.
type Row struct {
	Ordinal  int       `json:"row"`
	Phone    string    `json:"phone"`
	Status   string    `json:"status"`
	Attempts int       `json:"attempts"`
	At       time.Time `json:"at"`
}

// Tracker is a dispatch.Observer that keeps a live view of the run.
type Tracker struct {
	mu     sync.RWMutex
	status Status
	recent []Row
	now    func() time.Time
}

// NewTracker creates an idle Tracker.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.status = Status{Phase: PhaseIdle, Updated: t.now()}
	return t
}

// Begin marks the run as started.
func (t *Tracker) Begin(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.status = Status{
		Phase:   PhaseRunning,
		Summary: domain.RunSummary{RunID: runID, StartedAt: now},
		Updated: now,
	}
	t.recent = nil
}

// Observe folds one row result into the live summary.
func (t *Tracker) Observe(ctx context.Context, r domain.RowResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Summary.Record(r.Outcome)
	t.status.LastRow = r.Ordinal
	t.status.Updated = t.now()

	t.recent = append(t.recent, Row{
		Ordinal:  r.Ordinal,
		Phone:    logger.RedactPhone(r.Phone),
		Status:   r.Outcome.StatusValue(),
		Attempts: r.Attempts,
		At:       r.At,
	})
	if len(t.recent) > recentLimit {
		t.recent = t.recent[len(t.recent)-recentLimit:]
	}
	return nil
}

// Finish replaces the live summary with the final one.
func (t *Tracker) Finish(s domain.RunSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Phase = PhaseFinished
	t.status.Summary = s
	t.status.Updated = t.now()
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Recent returns the most recent rows, oldest first.
func (t *Tracker) Recent() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Row(nil), t.recent...)
}
