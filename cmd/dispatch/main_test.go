package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignite/lead-dispatch/internal/config"
	"github.com/ignite/lead-dispatch/internal/domain"
	"github.com/ignite/lead-dispatch/internal/pkg/distlock"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
	"github.com/ignite/lead-dispatch/internal/table"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("%w: missing column", dispatch.ErrConfiguration), exitConfig},
		{fmt.Errorf("%w: sheet unreachable", dispatch.ErrConnection), exitConnection},
		{distlock.ErrHeld, exitLockHeld},
		{errors.New("boom"), exitFailure},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, domain.RunSummary{Seen: 3, Eligible: 2, Sent: 1, Failed: 1, Duration: 5 * time.Second})
	if got, want := buf.String(), "Done. 3 rows, 2 eligible: 1 sent, 1 failed in 5s\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	printSummary(&buf, domain.RunSummary{Reason: "table is empty"})
	if !strings.Contains(buf.String(), "table is empty") {
		t.Errorf("reason missing from %q", buf.String())
	}
}

func csvConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Table.Backend = config.BackendCSV
	cfg.Table.CSVPath = path
	cfg.Dispatch.MinDelaySec = 0
	cfg.Dispatch.MaxDelaySec = 0
	return cfg
}

func TestWire_CSVAndTwilioEndToEnd(t *testing.T) {
	var sends int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sends, 1)
		r.ParseForm()
		if r.PostForm.Get("To") == "+14155550100" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":21610,"message":"Attempt to send to unsubscribed recipient"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cfg := csvConfig(t, "Name,Contact number of lead,Status\n"+
		"Asha,98765 43210,new\n"+
		"Ben,12,new\n"+
		"Chen,+1 415 555 0100, NEW \n"+
		"Dev,98765 00000,Sent\n")
	cfg.Channel.Provider = config.ChannelTwilio
	cfg.Channel.TwilioAccountSID = "AC1"
	cfg.Channel.TwilioAuthToken = "secret"
	cfg.Channel.TwilioFromNumber = "+15550199"
	cfg.Channel.TwilioBaseURL = srv.URL
	cfg.Channel.HTTPRetries = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	a, err := wire(context.Background(), cfg)
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer a.close()
	if _, ok := a.lock.(distlock.NopLock); !ok {
		t.Errorf("expected NopLock without REDIS_URL or DATABASE_URL, got %T", a.lock)
	}

	throttle, _ := dispatch.NewThrottle(0, 0)
	svc := dispatch.NewService(a.source, a.writer, a.messenger, throttle, a.observers...)
	summary, err := svc.Run(context.Background(), cfg.RunConfig("run-e2e", "Hello"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Eligible != 3 || summary.Sent != 1 || summary.Failed != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if got := atomic.LoadInt32(&sends); got != 2 {
		t.Errorf("twilio calls = %d, want 2", got)
	}

	ds, err := table.New(table.FileStore{Path: cfg.Table.CSVPath}).FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Sent", "Invalid Phone", "Error: twilio 21610: Attempt to send to unsubscribed recipient", "Sent"}
	for i, w := range want {
		if got := ds.Rows[i][2]; got != w {
			t.Errorf("row %d status = %q, want %q", i+2, got, w)
		}
	}
	if st := a.tracker.Snapshot(); st.Summary.Sent != 1 || st.LastRow != 4 {
		t.Errorf("tracker = %+v", st)
	}
}

func TestWire_DryRunLeavesTableUntouched(t *testing.T) {
	const content = "Contact number of lead,Status\n98765 43210,new\n"
	cfg := csvConfig(t, content)
	cfg.Channel.Provider = config.ChannelDryRun

	a, err := wire(context.Background(), cfg)
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	if _, ok := a.writer.(table.Discard); !ok {
		t.Fatalf("writer = %T, want table.Discard", a.writer)
	}

	svc := dispatch.NewService(a.source, a.writer, a.messenger, nil, a.observers...)
	summary, err := svc.Run(context.Background(), cfg.RunConfig("dry", "Hello"))
	if err != nil || summary.Sent != 1 {
		t.Fatalf("Run = %+v, %v", summary, err)
	}

	data, _ := os.ReadFile(cfg.Table.CSVPath)
	if string(data) != content {
		t.Errorf("table changed in dry run: %q", data)
	}
}

func TestWire_BadRedisURL(t *testing.T) {
	cfg := csvConfig(t, "")
	cfg.Channel.Provider = config.ChannelTwilio
	cfg.Lock.RedisURL = "://nope"

	_, err := wire(context.Background(), cfg)
	if exitCode(err) != exitConfig {
		t.Errorf("exitCode = %d, want %d (err %v)", exitCode(err), exitConfig, err)
	}
}

func TestWire_MissingCSVIsConnectionFailure(t *testing.T) {
	cfg := csvConfig(t, "")
	cfg.Table.CSVPath = filepath.Join(filepath.Dir(cfg.Table.CSVPath), "leeds.csv")
	cfg.Channel.Provider = config.ChannelDryRun

	a, err := wire(context.Background(), cfg)
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	defer a.close()

	svc := dispatch.NewService(a.source, a.writer, a.messenger, nil, a.observers...)
	summary, err := svc.Run(context.Background(), cfg.RunConfig("typo", "Hello"))
	if code := exitCode(err); code != exitConnection {
		t.Errorf("exitCode = %d, want %d (err %v)", code, exitConnection, err)
	}
	if summary.Eligible != 0 || summary.Sent != 0 {
		t.Errorf("summary = %+v", summary)
	}
}
