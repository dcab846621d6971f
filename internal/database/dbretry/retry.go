package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrAlreadyExists is returned by models when an insert hits a unique constraint.
var ErrAlreadyExists = errors.New("row already exists")

var (
	maxElapsedTime  = 30 * time.Second
	initialInterval = 500 * time.Millisecond
	maxInterval     = 5 * time.Second
	maxRetries      = uint64(5)
)

// retryableCodes are the PostgreSQL SQLSTATE codes worth retrying.
var retryableCodes = map[string]struct{}{
	"08000": {}, // connection_exception
	"08001": {}, // sqlclient_unable_to_establish_sqlconnection
	"08003": {}, // connection_does_not_exist
	"08004": {}, // sqlserver_rejected_establishment_of_sqlconnection
	"08006": {}, // connection_failure
	"08007": {}, // transaction_resolution_unknown
	"08P01": {}, // protocol_violation
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53000": {}, // insufficient_resources
	"53100": {}, // disk_full
	"53200": {}, // out_of_memory
	"53300": {}, // too_many_connections
	"53400": {}, // configuration_limit_exceeded
	"55P03": {}, // lock_not_available
	"57000": {}, // operator_intervention
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
}

// networkErrors are substrings of transient network failures.
var networkErrors = []string{
	"connection reset by peer",
	"broken pipe",
	"connection refused",
	"no connection",
	"i/o timeout",
	"EOF",
}

// sqlState returns the SQLSTATE code of a PostgreSQL error, or "".
func sqlState(err error) string {
	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		return pgerr.Field('C')
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique_violation (23505).
func IsUniqueViolation(err error) bool {
	return sqlState(err) == "23505"
}

// IsRetryableError checks if the given error is retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := retryableCodes[sqlState(err)]; ok {
		return true
	}

	// A cancelled caller must not be retried
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errMsg := err.Error()
	for _, s := range networkErrors {
		if strings.Contains(errMsg, s) {
			return true
		}
	}

	return false
}

// retry runs fn with exponential backoff until it succeeds, fails permanently or runs out of attempts.
func retry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
	), maxRetries)

	err := backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}

		lastErr = err

		return err
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}

	if lastErr != nil && !errors.Is(err, lastErr) {
		return fmt.Errorf("database operation failed after retries: %w", lastErr)
	}

	return err
}

// Operation wraps a database operation with retry logic.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	var result T

	err := retry(ctx, func(ctx context.Context) error {
		var err error
		result, err = operation(ctx)
		return err
	})

	return result, err
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	return retry(ctx, operation)
}

// Transaction runs fn inside a transaction, retrying the whole transaction on transient errors.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return retry(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}
