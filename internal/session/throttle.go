package session

import (
	"slices"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// AttemptStore persists the times of failed logins so the limit holds
// across processes
type AttemptStore interface {
	LoadAttempts() ([]time.Time, error)
	SaveAttempts(failures []time.Time) error
}

// throttle allows maxAttempts failed logins, refilling one every
// window/maxAttempts. A successful login restores the full budget.
type throttle struct {
	maxAttempts int
	window      time.Duration
	limiter     *rate.Limiter

	// failures within the last window, oldest first
	failures []time.Time
	store    AttemptStore
}

func newThrottle(maxAttempts int, window time.Duration) *throttle {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	t := &throttle{maxAttempts: maxAttempts, window: window}
	t.limiter = t.newLimiter()
	return t
}

func (t *throttle) newLimiter() *rate.Limiter {
	every := t.window / time.Duration(t.maxAttempts)
	return rate.NewLimiter(rate.Every(every), t.maxAttempts)
}

// load replays the stored failures into a fresh limiter
func (t *throttle) load(store AttemptStore, now time.Time) error {
	t.store = store
	failures, err := store.LoadAttempts()
	if err != nil {
		return err
	}
	slices.SortFunc(failures, func(a, b time.Time) int { return a.Compare(b) })

	t.limiter = t.newLimiter()
	t.failures = nil
	for _, at := range failures {
		if at.Before(now.Add(-t.window)) {
			continue
		}
		t.limiter.AllowN(at, 1)
		t.failures = append(t.failures, at)
	}
	return nil
}

func (t *throttle) allowed(now time.Time) bool {
	return t.limiter.TokensAt(now) >= 1
}

func (t *throttle) failure(now time.Time) error {
	t.limiter.AllowN(now, 1)

	cutoff := now.Add(-t.window)
	t.failures = slices.DeleteFunc(t.failures, func(at time.Time) bool { return at.Before(cutoff) })
	t.failures = append(t.failures, now)
	return t.save()
}

func (t *throttle) reset() error {
	t.limiter = t.newLimiter()
	t.failures = nil
	return t.save()
}

func (t *throttle) save() error {
	if t.store == nil {
		return nil
	}
	return t.store.SaveAttempts(t.failures)
}
