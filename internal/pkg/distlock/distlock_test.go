package distlock

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLock_SingleOwner(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	first := NewRedisLock(client, "lead-dispatch:sheet-1", time.Minute)
	second := NewRedisLock(client, "lead-dispatch:sheet-1", time.Minute)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:lead-dispatch:sheet-1"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A non-owner release must not free the lock.
	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("lock:lead-dispatch:sheet-1"))

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("lock:lead-dispatch:sheet-1"))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Extend(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	l := NewRedisLock(client, "k", 10*time.Second)
	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Extend(ctx, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("lock:k"))

	mr.FastForward(2 * time.Minute)
	assert.Error(t, l.Extend(ctx, time.Minute))
}

func TestGuard(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	holder := NewRedisLock(client, "sheet", time.Minute)
	called := false
	err := Guard(ctx, holder, func(ctx context.Context) error {
		called = true
		inner := Guard(ctx, NewRedisLock(client, "sheet", time.Minute), func(context.Context) error {
			t.Error("inner run must not start while the lock is held")
			return nil
		})
		assert.True(t, errors.Is(inner, ErrHeld))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	ok, err := NewRedisLock(client, "sheet", time.Minute).Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "Guard must release the lock")
}

func TestGuard_PropagatesRunError(t *testing.T) {
	boom := errors.New("boom")
	err := Guard(context.Background(), NopLock{}, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPGAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "lead-dispatch:sheet-1")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGAdvisoryLock_Held(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "lead-dispatch:sheet-1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	err = Guard(context.Background(), l, func(context.Context) error {
		t.Error("must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLock_Backends(t *testing.T) {
	_, client := newRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.IsType(t, &RedisLock{}, NewLock(client, db, "k", time.Minute))
	assert.IsType(t, &PGAdvisoryLock{}, NewLock(nil, db, "k", time.Minute))
	assert.IsType(t, NopLock{}, NewLock(nil, nil, "k", time.Minute))
}
