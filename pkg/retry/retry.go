package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Jitter selects how delays are randomized
type Jitter int

const (
	// JitterNone uses the plain exponential delay
	JitterNone Jitter = iota
	// JitterEqual keeps half of the delay and randomizes the other half
	JitterEqual
	// JitterDecorrelated picks a delay between InitialDelay and 3x the previous delay
	JitterDecorrelated
)

// Config defines retry behaviour
type Config struct {
	// MaxAttempts counts the first call too
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       Jitter
	// Rand is the jitter source; a fresh PCG source is used when nil
	Rand *rand.Rand
	// OnRetry is called before sleeping between attempts
	OnRetry func(attempt int, err error, delay time.Duration)
	// After creates the wait channel (tests swap it for an instant one)
	After func(d time.Duration) <-chan time.Time
}

// DefaultConfig is tuned for SQLITE_BUSY on a local file: short first delay, a handful of attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       JitterEqual,
	}
}

// Normalize validates c and fills optional fields
func (c *Config) Normalize() error {
	if c.MaxAttempts <= 0 {
		return errors.New("retry: MaxAttempts must be positive")
	}
	if c.InitialDelay <= 0 {
		return errors.New("retry: InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = c.InitialDelay * 50
	}
	if c.InitialDelay > c.MaxDelay {
		return errors.New("retry: InitialDelay cannot be greater than MaxDelay")
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if c.After == nil {
		c.After = time.After
	}
	return nil
}

// ExhaustedError is returned when every attempt failed with a retryable error
type ExhaustedError struct {
	LastError error
	Attempts  int
	Elapsed   time.Duration
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts in %s: %v", e.Attempts, e.Elapsed, e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// DefaultRetryable retries errors that report themselves as temporary.
// Context errors are never retried.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts run out
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	return DoWithRetryable(ctx, cfg, fn, DefaultRetryable)
}

// DoWithRetryable is Do with a custom retry predicate
func DoWithRetryable(ctx context.Context, cfg Config, fn func(ctx context.Context) error, retryable func(error) bool) error {
	if err := cfg.Normalize(); err != nil {
		return err
	}

	start := time.Now()
	prev := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.delay(attempt, prev)
		prev = delay
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cfg.After(delay):
		}
	}

	return &ExhaustedError{LastError: lastErr, Attempts: cfg.MaxAttempts, Elapsed: time.Since(start)}
}

// DoValue is Do for functions that return a value
func DoValue[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// backoff returns InitialDelay * Multiplier^(attempt-1), capped at MaxDelay
func (c Config) backoff(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(d) * c.Multiplier)
		if next > c.MaxDelay || next < d {
			return c.MaxDelay
		}
		d = next
	}
	return d
}

func (c Config) delay(attempt int, prev time.Duration) time.Duration {
	base := c.backoff(attempt)

	switch c.Jitter {
	case JitterEqual:
		half := base / 2
		if half <= 0 {
			return base
		}
		return half + time.Duration(c.Rand.Int64N(int64(half)+1))
	case JitterDecorrelated:
		upper := 3 * prev
		if upper > c.MaxDelay {
			upper = c.MaxDelay
		}
		if upper <= c.InitialDelay {
			return c.InitialDelay
		}
		return c.InitialDelay + time.Duration(c.Rand.Int64N(int64(upper-c.InitialDelay)+1))
	default:
		return base
	}
}
