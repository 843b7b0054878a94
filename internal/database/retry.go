package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"chatsink/internal/constants"
	"chatsink/internal/errors"
)

// retryableDBOperationNoReturn executes a database operation with
// retry on transient SQLite failures (lock contention, disk I/O).
// Exhausting the attempts surfaces a retryable storage error so the
// caller's own retry machinery can pick the event up later.
func retryableDBOperationNoReturn(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error

	maxAttempts := constants.DefaultDatabaseRetryAttempts
	initialBackoff := dbRetryBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if !isRetryableDBError(err) {
			return fmt.Errorf("%s failed (non-retryable): %w", operationName, err)
		}

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * initialBackoff
		if backoff > time.Duration(constants.DefaultDBMaxBackoffMs)*time.Millisecond {
			backoff = time.Duration(constants.DefaultDBMaxBackoffMs) * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return errors.NewDatabaseError(operationName,
		fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr))
}

// dbRetryBackoff is the initial delay between attempts; a variable so
// tests can shrink it.
var dbRetryBackoff = time.Duration(constants.DefaultDBRetryBackoffMs) * time.Millisecond

// wrapDBError classifies a driver error from a path without the retry
// loop: transient failures become retryable storage errors, the rest
// keep a plain wrap. Errors already carrying a classification pass
// through untouched.
func wrapDBError(operation string, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if isRetryableDBError(err) {
		return errors.NewDatabaseError(operation, err)
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// isRetryableDBError determines if a database error is worth retrying.
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()

	if strings.Contains(errStr, "database is locked") {
		return true
	}
	if strings.Contains(errStr, "disk I/O error") {
		return true
	}

	// A closed pool or refused connection can heal while a retry is
	// pending (store restart, network-mounted database).
	if strings.Contains(errStr, "database is closed") || strings.Contains(errStr, "connection refused") {
		return true
	}

	// Constraint and schema errors will not resolve by retrying.
	if strings.Contains(errStr, "UNIQUE constraint") || strings.Contains(errStr, "FOREIGN KEY constraint") {
		return false
	}
	if strings.Contains(errStr, "no such table") || strings.Contains(errStr, "no such column") {
		return false
	}

	return false
}
