// Package distlock keeps periodic jobs from running on more than one
// process at a time.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when extending or releasing a lock this instance
// does not own.
var ErrNotHeld = errors.New("lock not held")

// Lock is a mutual exclusion lock shared between processes. An instance is
// meant for one goroutine; create separate instances for concurrent callers.
type Lock interface {
	// Acquire tries once and reports whether the lock was taken.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock up if this instance still owns it.
	Release(ctx context.Context) error
}

// New returns a Redis lock when rdb is set and a Postgres advisory lock
// otherwise.
func New(rdb *redis.Client, db *sql.DB, key string, ttl time.Duration) Lock {
	if rdb != nil {
		return NewRedisLock(rdb, key, ttl)
	}
	return NewAdvisoryLock(db, key)
}

// Run calls fn only if the lock can be taken, and releases it afterwards.
// It reports whether fn ran.
func Run(ctx context.Context, l Lock, fn func(context.Context) error) (bool, error) {
	ok, err := l.Acquire(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer l.Release(context.WithoutCancel(ctx))
	return true, fn(ctx)
}
