package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Config controls WithRetry. Backoff doubles each attempt starting from
// InitialBackoff (attempt counted from 1).
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	IsRetryable    func(error) bool
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		IsRetryable:    IsTransient,
	}
}

// ExhaustedError wraps the last underlying error once all attempts are spent.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// WithRetry runs op, retrying on errors the config classifies as retryable.
// Non-retryable errors propagate immediately and unwrapped, so business
// failures (not found, validation) are never re-executed.
func WithRetry(ctx context.Context, cfg Config, op func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := op(); err != nil {
			lastErr = err
			if !cfg.IsRetryable(err) {
				return err
			}
			if attempt == cfg.MaxAttempts {
				break
			}
			backoff := cfg.InitialBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		return nil
	}

	return &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

// Postgres error classes that are safe to retry: the transaction did not
// commit and re-running it cannot double-apply anything.
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement timeout)
}

// IsTransient reports whether err is a transient storage failure. Everything
// else, including gorm.ErrRecordNotFound and constraint violations, is
// permanent and must not be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return transientPgCodes[pgErr.Code]
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
