package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/lead-dispatch/internal/domain"
)

type cellWrite struct {
	Ordinal int
	Column  int
	Value   string
}

// memTable is an in-memory TableSource + TableWriter.
type memTable struct {
	mu       sync.Mutex
	ds       *domain.Dataset
	fetchErr error
	writeErr error
	writes   []cellWrite
}

func (m *memTable) FetchAll(_ context.Context) (*domain.Dataset, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.ds, nil
}

func (m *memTable) SetCell(_ context.Context, ordinal, column int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, cellWrite{ordinal, column, value})
	return m.writeErr
}

type sendCall struct {
	Phone   string
	Message string
	Opts    SendOptions
}

// fakeMessenger fails the phones listed in failures, once per listed error.
type fakeMessenger struct {
	mu       sync.Mutex
	calls    []sendCall
	failures map[string][]error
	onSend   func()
}

func (f *fakeMessenger) SendInstant(_ context.Context, phone, message string, opts SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{phone, message, opts})
	if f.onSend != nil {
		f.onSend()
	}
	if errs := f.failures[phone]; len(errs) > 0 {
		f.failures[phone] = errs[1:]
		return errs[0]
	}
	return nil
}

type recordingObserver struct {
	results []domain.RowResult
	err     error
}

func (o *recordingObserver) Observe(_ context.Context, r domain.RowResult) error {
	o.results = append(o.results, r)
	return o.err
}

// countingThrottle returns a throttle that never sleeps and counts waits.
func countingThrottle(minSec, maxSec int, waits *[]time.Duration) *Throttle {
	t, err := NewThrottle(minSec, maxSec)
	if err != nil {
		panic(err)
	}
	t.sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
	return t
}

var errBoom = errors.New("boom")

func header() []string {
	return []string{"Name", domain.DefaultPhoneColumn, domain.DefaultStatusColumn}
}
