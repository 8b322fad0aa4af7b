package domain

import "time"

// OutcomeKind classifies what happened to an eligible row.
type OutcomeKind string

const (
	OutcomeSent         OutcomeKind = "sent"
	OutcomeInvalidPhone OutcomeKind = "invalid_phone"
	OutcomeChannelError OutcomeKind = "channel_error"
	OutcomeSkipped      OutcomeKind = "skipped"
)

// Outcome is the immutable result of processing one eligible row. Detail is
// only set for OutcomeChannelError.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

// Sent returns the outcome of a successful send.
func Sent() Outcome { return Outcome{Kind: OutcomeSent} }

// InvalidPhone returns the outcome of a row rejected by phone validation.
func InvalidPhone() Outcome { return Outcome{Kind: OutcomeInvalidPhone} }

// ChannelError returns the outcome of a failed send carrying the channel's
// human-readable reason.
func ChannelError(detail string) Outcome {
	return Outcome{Kind: OutcomeChannelError, Detail: detail}
}

// Skipped returns the outcome of an eligible row that was never started.
func Skipped() Outcome { return Outcome{Kind: OutcomeSkipped} }

// StatusValue is the literal written to the status cell for this outcome.
// Skipped rows are never written and yield "".
func (o Outcome) StatusValue() string {
	switch o.Kind {
	case OutcomeSent:
		return StatusSent
	case OutcomeInvalidPhone:
		return StatusInvalidPhone
	case OutcomeChannelError:
		return StatusErrorPrefix + o.Detail
	default:
		return ""
	}
}

// Failed reports whether the outcome counts towards RunSummary.Failed.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeInvalidPhone || o.Kind == OutcomeChannelError
}

// RowResult is what observers receive once a row reaches Recorded.
type RowResult struct {
	RunID      string    `json:"run_id"`
	Ordinal    int       `json:"ordinal"`
	Phone      string    `json:"phone"`
	Outcome    Outcome   `json:"outcome"`
	Attempts   int       `json:"attempts"`
	WriteError string    `json:"write_error,omitempty"`
	At         time.Time `json:"at"`
}

// RunSummary aggregates one run. Reason is set when the run ended before
// processing any row (empty table, missing columns, fetch failure).
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Seen        int           `json:"seen"`
	Eligible    int           `json:"eligible"`
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Interrupted bool          `json:"interrupted"`
	Reason      string        `json:"reason,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Record folds one row outcome into the summary.
func (s *RunSummary) Record(o Outcome) {
	switch {
	case o.Kind == OutcomeSent:
		s.Sent++
	case o.Kind == OutcomeSkipped:
		s.Skipped++
	case o.Failed():
		s.Failed++
	}
}

// Processed is the number of eligible rows that reached Recorded.
func (s RunSummary) Processed() int {
	return s.Sent + s.Failed
}
