package store

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/regtechmx/expediente-engine/internal/model"
)

// RetryConfig controls retries of store operations with exponential backoff
// and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Default: 100ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 5s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = no jitter, 0.5 = ±50%). Default: 0.25.
	JitterFraction float64
}

// DefaultRetryConfig returns a retry configuration suited to short database
// operations: sqlite lock contention and dropped postgres connections clear
// within a few hundred milliseconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// WithRetry wraps a store so that transient failures (lock contention,
// connection drops) are retried. Non-transient errors, including ErrNotFound,
// pass through untouched.
func WithRetry(inner Store, cfg RetryConfig) Store {
	return &retryingStore{inner: inner, cfg: applyRetryDefaults(cfg)}
}

type retryingStore struct {
	inner Store
	cfg   RetryConfig
}

func (s *retryingStore) SaveRun(ctx context.Context, run *model.Run) error {
	return s.do(ctx, "save_run", func(ctx context.Context) error {
		return s.inner.SaveRun(ctx, run)
	})
}

func (s *retryingStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var run *model.Run
	err := s.do(ctx, "get_run", func(ctx context.Context) error {
		var err error
		run, err = s.inner.GetRun(ctx, id)
		return err
	})
	return run, err
}

func (s *retryingStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	var runs []model.Run
	err := s.do(ctx, "list_runs", func(ctx context.Context) error {
		var err error
		runs, err = s.inner.ListRuns(ctx, filter)
		return err
	})
	return runs, err
}

func (s *retryingStore) Migrate(ctx context.Context) error {
	return s.do(ctx, "migrate", func(ctx context.Context) error {
		return s.inner.Migrate(ctx)
	})
}

func (s *retryingStore) Close() error {
	return s.inner.Close()
}

func (s *retryingStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if !isTransientStoreErr(lastErr) {
			return lastErr
		}
		if attempt >= s.cfg.MaxAttempts-1 {
			break
		}

		zap.L().Warn("retrying store operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))

		timer := time.NewTimer(computeBackoff(attempt, s.cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func applyRetryDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}

	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// isTransientStoreErr reports whether an error is worth retrying: sqlite
// lock contention or a broken database connection. Logical errors such as
// ErrNotFound or constraint violations never qualify.
func isTransientStoreErr(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"database is locked",
		"database table is locked",
		"busy",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"conn closed",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
