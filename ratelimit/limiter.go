/*
Package ratelimit bounds how often a client may attempt an action.

MODEL:
  A key (e.g. the client IP) may make at most MaxAttempts attempts within a
  sliding Window. Attempts are timestamps kept in an AttemptStore; the
  current time comes from an injected Clock so behaviour is deterministic in
  tests. There is no global state.

STORES:
  MemoryStore: single process
  RedisStore:  shared between server instances (go-redis sorted sets)

USAGE:
  limiter := ratelimit.New(ratelimit.NewMemoryStore(), 3, 5*time.Minute)
  ok, retryAfter, err := limiter.Attempt(ctx, clientIP)
*/
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrLimited marks a request rejected because its key has no attempts left.
var ErrLimited = errors.New("too many attempts")

// LimitedError is returned by Take. It matches ErrLimited with errors.Is.
type LimitedError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("%s: %v, retry in %s", e.Key, ErrLimited, e.RetryAfter)
}

func (e *LimitedError) Is(target error) bool { return target == ErrLimited }

// Clock abstracts time.Now.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// AttemptStore keeps attempt timestamps per key.
type AttemptStore interface {
	// Attempts returns the attempts for key strictly after since, oldest first.
	Attempts(ctx context.Context, key string, since time.Time) ([]time.Time, error)

	// Add records an attempt and may drop attempts older than at-window.
	Add(ctx context.Context, key string, at time.Time, window time.Duration) error

	// AddIfBelow records an attempt at at only when fewer than limit attempts
	// fall after at-window, as one atomic step. It reports whether the
	// attempt was recorded and returns the attempts in the window afterwards,
	// oldest first.
	AddIfBelow(ctx context.Context, key string, at time.Time, window time.Duration, limit int) (bool, []time.Time, error)

	// Clear removes all attempts for key.
	Clear(ctx context.Context, key string) error
}

// Limiter allows at most MaxAttempts per Window per key.
type Limiter struct {
	Store       AttemptStore
	Clock       Clock
	MaxAttempts int
	Window      time.Duration
}

// New creates a limiter on the system clock.
func New(store AttemptStore, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{
		Store:       store,
		Clock:       SystemClock{},
		MaxAttempts: maxAttempts,
		Window:      window,
	}
}

func (l *Limiter) recent(ctx context.Context, key string) ([]time.Time, time.Time, error) {
	now := l.Clock.Now()
	attempts, err := l.Store.Attempts(ctx, key, now.Add(-l.Window))
	if err != nil {
		return nil, now, errors.Wrapf(err, "load attempts for %s", key)
	}
	return attempts, now, nil
}

// Allow reports whether key may make another attempt now.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	attempts, _, err := l.recent(ctx, key)
	if err != nil {
		return false, err
	}
	return len(attempts) < l.MaxAttempts, nil
}

// Record registers an attempt for key at the current time.
func (l *Limiter) Record(ctx context.Context, key string) error {
	if err := l.Store.Add(ctx, key, l.Clock.Now(), l.Window); err != nil {
		return errors.Wrapf(err, "record attempt for %s", key)
	}
	return nil
}

// Remaining is how long until the oldest attempt in the window expires,
// rounded up to whole seconds. Zero when there are no recent attempts.
func (l *Limiter) Remaining(ctx context.Context, key string) (time.Duration, error) {
	attempts, now, err := l.recent(ctx, key)
	if err != nil {
		return 0, err
	}
	return l.wait(now, attempts), nil
}

func (l *Limiter) wait(now time.Time, attempts []time.Time) time.Duration {
	if len(attempts) == 0 {
		return 0
	}
	left := l.Window - now.Sub(attempts[0])
	if left <= 0 {
		return 0
	}
	return ceilSecond(left)
}

// Reset forgets all attempts for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.Store.Clear(ctx, key)
}

// Attempt checks and, when allowed, records an attempt in one store call, so
// concurrent callers cannot all slip in under the limit. When the key is
// limited it returns false and the time until the next attempt is possible.
func (l *Limiter) Attempt(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.Clock.Now()
	ok, attempts, err := l.Store.AddIfBelow(ctx, key, now, l.Window, l.MaxAttempts)
	if err != nil {
		return false, 0, errors.Wrapf(err, "record attempt for %s", key)
	}
	if ok {
		return true, 0, nil
	}
	return false, l.wait(now, attempts), nil
}

// Take is Attempt in error form: nil when the attempt is recorded, a
// *LimitedError when key is limited.
func (l *Limiter) Take(ctx context.Context, key string) error {
	ok, wait, err := l.Attempt(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &LimitedError{Key: key, RetryAfter: wait}
	}
	return nil
}

func ceilSecond(d time.Duration) time.Duration {
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}
