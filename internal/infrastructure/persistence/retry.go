package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"
	"time"

	"flight-alert-service/pkg/logger"

	"github.com/jackc/pgx/v5/pgconn"
)

// RetryPolicy is a fixed-count, fixed-delay retry for transient connection failures
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy matches the storage reconnect budget: 3 attempts, 2s apart
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 2 * time.Second}

// IsTransient reports whether err is a connectivity failure worth retrying.
// Constraint violations, bad SQL and context cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Retry runs fn, retrying only transient failures up to policy.Attempts times
func Retry(ctx context.Context, policy RetryPolicy, log logger.Logger, operation string, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}

		log.Warn("Transient storage failure",
			"operation", operation,
			"attempt", attempt,
			"maxAttempts", attempts,
			"error", err)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Delay):
		}
	}
	return err
}
