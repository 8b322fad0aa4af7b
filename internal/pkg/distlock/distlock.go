// Package distlock keeps two dispatch runs from writing to the same lead
// table at the same time.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Guard when another process owns the lock.
var ErrHeld = errors.New("lock is held by another run")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock picks a backend: Redis when a client is given, PostgreSQL advisory
// locks when only a database is given, and a process-local no-op otherwise.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	default:
		return NopLock{}
	}
}

// Guard acquires l, runs fn and releases l. It returns ErrHeld without
// calling fn when the lock is taken.
func Guard(ctx context.Context, l DistLock, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.Release(rctx)
	}()

	if ext, ok := l.(extender); ok && ext.TTL() > 0 {
		stop := make(chan struct{})
		defer close(stop)
		go keepAlive(ctx, ext, stop)
	}
	return fn(ctx)
}

type extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
	TTL() time.Duration
}

// keepAlive extends the lock every half TTL until stop is closed.
func keepAlive(ctx context.Context, l extender, stop <-chan struct{}) {
	ticker := time.NewTicker(l.TTL() / 2)
	defer ticker.Stop()
	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = l.Extend(ctx, l.TTL())
		}
	}
}

// NopLock always succeeds. Used when no shared backend is configured.
type NopLock struct{}

func (NopLock) Acquire(context.Context) (bool, error) { return true, nil }
func (NopLock) Release(context.Context) error         { return nil }

// PGAdvisoryLock implements DistLock using session-scoped PostgreSQL
// advisory locks, released automatically if the connection drops.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire pins a connection (advisory locks belong to a session) and tries
// pg_try_advisory_lock, which never blocks.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
