package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"main/pkg/exception"

	yerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
)

// Idempotent writes are retried a bounded number of times with backoff
// before surfacing a persistence error. Duplicates and not-found are
// returned immediately since retrying cannot change the outcome.
var retryDelays = [...]time.Duration{time.Second, 3 * time.Second, 5 * time.Second}

func retryWrite(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelays[attempt-1]):
			}
			logs.Warnf("retrying %s, attempt %d, err: %v", op, attempt, err)
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
	}
	return yerrors.Wrap(exception.ErrPersistence, op+": "+err.Error())
}

func isRetryable(err error) bool {
	if isDuplicate(err) {
		return false
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, exception.ErrAlertStatusBackward),
		errors.Is(err, exception.ErrTerminalState):
		return false
	}
	return true
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key")
}
