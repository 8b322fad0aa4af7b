// Command dispatch sends the configured outreach message to every lead whose
// status is "new" and records the outcome in the lead table.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/ignite/lead-dispatch/internal/audit"
	"github.com/ignite/lead-dispatch/internal/config"
	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/events"
	"github.com/ignite/lead-dispatch/internal/message"
	"github.com/ignite/lead-dispatch/internal/messenger"
	"github.com/ignite/lead-dispatch/internal/pkg/awsconf"
	"github.com/ignite/lead-dispatch/internal/pkg/distlock"
	"github.com/ignite/lead-dispatch/internal/pkg/logger"
	"github.com/ignite/lead-dispatch/internal/report"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
	"github.com/ignite/lead-dispatch/internal/sheets"
	"github.com/ignite/lead-dispatch/internal/statusapi"
	"github.com/ignite/lead-dispatch/internal/table"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitConfig     = 2
	exitConnection = 3
	exitLockHeld   = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file (optional)")
	dryRun := flag.Bool("dry-run", false, "log messages instead of sending them and leave the table untouched")
	statusAddr := flag.String("status-addr", "", "serve /healthz and /status on this address, e.g. :8090")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("loading config failed", "error", err)
		return exitCode(err)
	}
	if *dryRun {
		cfg.Channel.Provider = config.ChannelDryRun
	}
	if *statusAddr != "" {
		cfg.Status.Addr = *statusAddr
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	body, err := message.Render(cfg.Dispatch.MessageText, message.Vars{
		SenderName: cfg.Dispatch.SenderName,
		RunID:      runID,
		Now:        time.Now(),
	})
	if err != nil {
		logger.Error("rendering message failed", "error", err)
		return exitCode(err)
	}

	a, err := wire(ctx, cfg)
	if err != nil {
		logger.Error("wiring collaborators failed", "error", err)
		return exitCode(err)
	}
	defer a.close()

	if cfg.Status.Addr != "" {
		srvCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := statusapi.Serve(srvCtx, cfg.Status.Addr, statusapi.NewRouter(a.tracker, cfg.Status.AllowedOrigins)); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
	}

	throttle, err := dispatch.NewThrottle(cfg.Dispatch.MinDelaySec, cfg.Dispatch.MaxDelaySec)
	if err != nil {
		logger.Error("invalid throttle", "error", err)
		return exitCode(err)
	}
	svc := dispatch.NewService(a.source, a.writer, a.messenger, throttle, a.observers...)

	logger.Info("lead dispatch starting",
		"run_id", runID,
		"table", cfg.Table.ID(),
		"channel", cfg.Channel.Provider,
		"dry_run", a.dryRun,
	)
	a.tracker.Begin(runID)

	var summary domain.RunSummary
	runErr := distlock.Guard(ctx, a.lock, func(ctx context.Context) error {
		var err error
		summary, err = svc.Run(ctx, cfg.RunConfig(runID, body))
		return err
	})
	if errors.Is(runErr, distlock.ErrHeld) {
		logger.Error("another run holds the table lock", "table", cfg.Table.ID())
		return exitLockHeld
	}
	if summary.RunID == "" {
		// The lock backend failed before the run started.
		logger.Error("acquiring run lock failed", "error", runErr)
		return exitConnection
	}

	a.finish(ctx, summary, cfg.Table.ID())
	printSummary(os.Stdout, summary)
	return exitCode(runErr)
}

// app holds the collaborators of one run.
type app struct {
	source    dispatch.TableSource
	writer    dispatch.TableWriter
	messenger dispatch.Messenger
	observers []dispatch.Observer
	tracker   *statusapi.Tracker
	ledger    *audit.Ledger
	mailer    *report.Mailer
	lock      distlock.DistLock
	dryRun    bool
	closers   []io.Closer
}

func wire(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		tracker: statusapi.NewTracker(),
		lock:    distlock.NopLock{},
		dryRun:  cfg.Channel.Provider == config.ChannelDryRun,
	}

	awsOnce := sync.OnceValues(func() (aws.Config, error) {
		return awsconf.Load(ctx, awsconf.Options{
			Region:          cfg.AWS.Region,
			Profile:         cfg.AWS.Profile,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
		})
	})
	loadAWS := func(context.Context) (aws.Config, error) { return awsOnce() }

	switch cfg.Table.Backend {
	case config.BackendSheets:
		c, err := sheets.New(ctx, sheets.Options{
			CredentialsFile: cfg.Table.CredentialsFile,
			SheetID:         cfg.Table.SheetID,
			SheetName:       cfg.Table.SheetName,
			BaseURL:         cfg.Table.SheetsBaseURL,
			Timeout:         cfg.Channel.Timeout(),
			Retries:         cfg.Channel.HTTPRetries,
		})
		if err != nil {
			return nil, err
		}
		a.source, a.writer = c, c
	case config.BackendCSV:
		t := table.New(table.FileStore{Path: cfg.Table.CSVPath})
		a.source, a.writer = t, t
	case config.BackendS3:
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dispatch.ErrConfiguration, err)
		}
		t := table.New(table.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Table.S3Bucket, cfg.Table.S3Key))
		a.source, a.writer = t, t
	default:
		return nil, fmt.Errorf("%w: unknown table backend %q", dispatch.ErrConfiguration, cfg.Table.Backend)
	}
	if a.dryRun {
		a.writer = table.Discard{}
	}

	m, err := messenger.New(ctx, cfg.Channel, loadAWS)
	if err != nil {
		return nil, err
	}
	a.messenger = m

	a.observers = append(a.observers, a.tracker)
	if cfg.Events.AMQPURL != "" {
		pub, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.RoutingKey)
		if err != nil {
			logger.Warn("event broker unavailable, outcome events disabled", "error", err)
			a.observers = append(a.observers, events.Fallback{})
		} else {
			a.observers = append(a.observers, pub)
			a.closers = append(a.closers, pub)
		}
	}

	if cfg.Audit.Table != "" || cfg.Report.Enabled() {
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dispatch.ErrConfiguration, err)
		}
		if cfg.Audit.Table != "" {
			a.ledger = audit.NewLedger(dynamodb.NewFromConfig(awsCfg), cfg.Audit.Table, cfg.Table.ID(), cfg.Audit.TTL())
			a.observers = append(a.observers, a.ledger)
		}
		if cfg.Report.Enabled() {
			a.mailer = report.NewMailer(sesv2.NewFromConfig(awsCfg), cfg.Report.From, cfg.Report.To)
		}
	}

	if !a.dryRun {
		lock, err := newLock(cfg)
		if err != nil {
			return nil, err
		}
		a.lock = lock
	}
	return a, nil
}

func newLock(cfg *config.Config) (distlock.DistLock, error) {
	key := "lead-dispatch:" + cfg.Table.ID()

	var redisClient *redis.Client
	if cfg.Lock.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Lock.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%w: REDIS_URL: %v", dispatch.ErrConfiguration, err)
		}
		redisClient = redis.NewClient(opts)
	}

	var db *sql.DB
	if redisClient == nil && cfg.Lock.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Lock.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: DATABASE_URL: %v", dispatch.ErrConfiguration, err)
		}
		db.SetMaxOpenConns(2)
	}

	return distlock.NewLock(redisClient, db, key, cfg.Lock.TTL()), nil
}

// finish publishes the final summary to the tracker, the ledger and the
// report mailer. Failures are logged only.
func (a *app) finish(ctx context.Context, summary domain.RunSummary, tableID string) {
	a.tracker.Finish(summary)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if a.ledger != nil {
		if err := a.ledger.RecordSummary(ctx, summary); err != nil {
			logger.Warn("recording run summary failed", "run_id", summary.RunID, "error", err)
		}
	}
	if a.mailer != nil {
		if err := a.mailer.Send(ctx, summary, tableID); err != nil {
			logger.Warn("sending report failed", "run_id", summary.RunID, "error", err)
		}
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

func printSummary(w io.Writer, s domain.RunSummary) {
	if s.Reason != "" {
		fmt.Fprintf(w, "Nothing dispatched: %s\n", s.Reason)
		return
	}
	fmt.Fprintf(w, "Done. %d rows, %d eligible: %d sent, %d failed", s.Seen, s.Eligible, s.Sent, s.Failed)
	if s.Interrupted {
		fmt.Fprintf(w, ", %d skipped (interrupted)", s.Skipped)
	}
	fmt.Fprintf(w, " in %s\n", s.Duration.Round(time.Second))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, dispatch.ErrConfiguration):
		return exitConfig
	case errors.Is(err, dispatch.ErrConnection):
		return exitConnection
	case errors.Is(err, distlock.ErrHeld):
		return exitLockHeld
	default:
		return exitFailure
	}
}
