package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/phone"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
)

// RunConfig is resolved once at startup and stays fixed for the whole run.
type RunConfig struct {
	RunID          string
	Message        string
	PhoneColumn    string
	StatusColumn   string
	DialPrefix     string
	FallbackPrefix string
	SendAttempts   int
	RetryBackoff   time.Duration
}

func (c RunConfig) withDefaults() RunConfig {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	if c.PhoneColumn == "" {
		c.PhoneColumn = domain.DefaultPhoneColumn
	}
	if c.StatusColumn == "" {
		c.StatusColumn = domain.DefaultStatusColumn
	}
	if c.FallbackPrefix == "" {
		c.FallbackPrefix = phone.DefaultFallbackPrefix
	}
	if c.DialPrefix == "" {
		c.DialPrefix = c.FallbackPrefix
	}
	if c.SendAttempts < 1 {
		c.SendAttempts = 1
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	return c
}

// Service drives the per-row state machine. It is not safe for concurrent
// runs; callers serialize runs with a distlock.
type Service struct {
	source    TableSource
	writer    TableWriter
	messenger Messenger
	throttle  *Throttle
	observers []Observer
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewService wires the collaborators of a run.
func NewService(source TableSource, writer TableWriter, messenger Messenger, throttle *Throttle, observers ...Observer) *Service {
	return &Service{
		source:    source,
		writer:    writer,
		messenger: messenger,
		throttle:  throttle,
		observers: observers,
		sleep:     sleepContext,
		now:       time.Now,
	}
}

// Run fetches the table and dispatches every eligible row. Only errors
// wrapping ErrConfiguration or ErrConnection are returned; the summary is
// always populated.
func (s *Service) Run(ctx context.Context, cfg RunConfig) (domain.RunSummary, error) {
	cfg = cfg.withDefaults()
	started := s.now()

	ds, err := s.source.FetchAll(ctx)
	if err != nil {
		if !errors.Is(err, ErrConnection) {
			err = fmt.Errorf("%w: %v", ErrConnection, err)
		}
		summary := domain.RunSummary{RunID: cfg.RunID, StartedAt: started, Reason: err.Error()}
		logger.Error("fetch table failed", "run_id", cfg.RunID, "error", err)
		return summary, err
	}
	return s.RunDataset(ctx, ds, cfg)
}

// RunDataset dispatches the eligible rows of an already fetched snapshot.
func (s *Service) RunDataset(ctx context.Context, ds *domain.Dataset, cfg RunConfig) (summary domain.RunSummary, err error) {
	cfg = cfg.withDefaults()
	summary = domain.RunSummary{RunID: cfg.RunID, StartedAt: s.now()}
	defer func() { summary.Duration = s.now().Sub(summary.StartedAt) }()

	if ds.Empty() {
		summary.Reason = "table is empty"
		logger.Warn("nothing to dispatch", "run_id", cfg.RunID, "reason", summary.Reason)
		return summary, nil
	}
	summary.Seen = len(ds.Rows)

	schema, err := ResolveSchema(ds.Header, cfg.PhoneColumn, cfg.StatusColumn)
	if err != nil {
		summary.Reason = err.Error()
		logger.Error("schema resolution failed", "run_id", cfg.RunID, "error", err)
		return summary, err
	}

	rows := SelectEligible(ds, schema)
	summary.Eligible = len(rows)
	logger.Info("dispatch started", "run_id", cfg.RunID, "rows", summary.Seen, "eligible", summary.Eligible)

	for i, row := range rows {
		if i > 0 && s.throttle != nil {
			d, err := s.throttle.Wait(ctx)
			if err != nil {
				logger.Warn("throttle wait interrupted", "run_id", cfg.RunID, "waited_for", d, "error", err)
				summary.Interrupted = true
				break
			}
		}
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		// The row runs to Recorded even if ctx is cancelled meanwhile.
		result := s.processRow(context.WithoutCancel(ctx), row, schema, cfg)
		summary.Record(result.Outcome)
	}

	if summary.Interrupted {
		for range rows[summary.Processed():] {
			summary.Record(domain.Skipped())
		}
	}

	logger.Info("dispatch finished",
		"run_id", cfg.RunID,
		"rows", summary.Seen,
		"eligible", summary.Eligible,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"interrupted", summary.Interrupted,
	)
	return summary, nil
}

func (s *Service) processRow(ctx context.Context, row domain.LeadRow, schema domain.Schema, cfg RunConfig) domain.RowResult {
	result := domain.RowResult{RunID: cfg.RunID, Ordinal: row.Ordinal}

	clean := phone.Clean(row.Phone)
	if !phone.IsDispatchable(clean) {
		result.Phone = clean
		result.Outcome = domain.InvalidPhone()
		logger.Warn("invalid phone", "run_id", cfg.RunID, "row", row.Ordinal, "phone", row.Phone)
	} else {
		result.Phone = phone.WithCountryCode(clean, cfg.DialPrefix, cfg.FallbackPrefix)
		result.Outcome, result.Attempts = s.send(ctx, result.Phone, row.Ordinal, cfg)
	}

	if err := s.record(ctx, row.Ordinal, schema.StatusIndex, result.Outcome.StatusValue()); err != nil {
		result.WriteError = err.Error()
	}
	result.At = s.now()

	for _, o := range s.observers {
		if err := o.Observe(ctx, result); err != nil {
			logger.Warn("observer failed", "run_id", cfg.RunID, "row", row.Ordinal, "error", err)
		}
	}
	return result
}

func (s *Service) send(ctx context.Context, to string, ordinal int, cfg RunConfig) (domain.Outcome, int) {
	opts := SendOptions{RunID: cfg.RunID, Ordinal: ordinal}

	var lastErr error
	attempt := 0
	for attempt < cfg.SendAttempts {
		if attempt > 0 {
			_ = s.sleep(ctx, time.Duration(attempt)*cfg.RetryBackoff)
		}
		attempt++

		logger.Info("sending", "run_id", cfg.RunID, "row", ordinal, "phone", to, "attempt", attempt)
		lastErr = s.messenger.SendInstant(ctx, to, cfg.Message, opts)
		if lastErr == nil {
			logger.Info("sent", "run_id", cfg.RunID, "row", ordinal)
			return domain.Sent(), attempt
		}
		logger.Warn("send attempt failed",
			"run_id", cfg.RunID,
			"row", ordinal,
			"attempt", attempt,
			"of", cfg.SendAttempts,
			"error", lastErr,
		)
	}
	return domain.ChannelError(channelDetail(lastErr)), attempt
}

// record writes the status cell. Failures are logged and reported to the
// caller but never change the row's outcome.
func (s *Service) record(ctx context.Context, ordinal, column int, value string) error {
	if err := s.writer.SetCell(ctx, ordinal, column, value); err != nil {
		werr := &WriteError{Ordinal: ordinal, Column: column, Err: err}
		logger.Error("status write failed", "row", ordinal, "value", value, "error", werr)
		return werr
	}
	return nil
}
