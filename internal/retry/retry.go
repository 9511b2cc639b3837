package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultAttempts caps the number of attempts of the default policy.
	DefaultAttempts = 10
	// DefaultInterval is the pause between two attempts.
	DefaultInterval = 10 * time.Millisecond
)

// ErrExhausted is returned when the predicate declined before any attempt ran.
var ErrExhausted = errors.New("retry exhausted")

// Predicate decides whether another attempt is made. attempt is the number of
// attempts made so far and last the error of the most recent one (nil before
// the first attempt).
type Predicate func(attempt int, last error) bool

// MaxAttempts returns a Predicate allowing at most n attempts.
func MaxAttempts(n int) Predicate {
	return func(attempt int, _ error) bool { return attempt < n }
}

// Policy configures Do.
type Policy struct {
	// ShouldRetry defaults to MaxAttempts(DefaultAttempts) when nil.
	ShouldRetry Predicate
	// Interval defaults to DefaultInterval when zero. Negative disables sleeping.
	Interval time.Duration
}

// Default is the policy used by the stores unless configured otherwise.
var Default = Policy{ShouldRetry: MaxAttempts(DefaultAttempts), Interval: DefaultInterval}

func (p Policy) predicate() Predicate {
	if p.ShouldRetry == nil {
		return MaxAttempts(DefaultAttempts)
	}
	return p.ShouldRetry
}

func (p Policy) interval() time.Duration {
	switch {
	case p.Interval == 0:
		return DefaultInterval
	case p.Interval < 0:
		return 0
	}
	return p.Interval
}

// Do runs fn until it succeeds or the policy's predicate returns false, and
// returns the first successful result. When the predicate stops the loop, Do
// returns the last error of fn, or ErrExhausted if fn never ran. Sleeping
// between attempts is interrupted by cancellation of ctx, in which case the
// context error is returned.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var (
		zero        T
		last        error
		attempt     int
		shouldRetry = p.predicate()
		interval    = p.interval()
	)
	for shouldRetry(attempt, last) {
		v, err := fn()
		attempt++
		if err == nil {
			return v, nil
		}
		last = err
		failuresTotal.Inc()
		log.WithFields(log.Fields{"attempt": attempt, "err": err}).Debug("retrying unit of work")

		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, errors.WithMessage(ctx.Err(), last.Error())
			case <-timer.C:
			}
		}
	}

	exhaustedTotal.Inc()
	if last == nil {
		return zero, ErrExhausted
	}
	return zero, last
}
