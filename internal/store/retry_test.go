package store

import (
	"context"
	"errors"
	"testing"

	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRetryWriteSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := retryWrite(context.Background(), "create alert", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWriteDomainErrorsAreNotRetried(t *testing.T) {
	testCases := []struct {
		desc string
		err  error
	}{
		{"duplicate key", gorm.ErrDuplicatedKey},
		{"not found", gorm.ErrRecordNotFound},
		{"status backward", exception.ErrAlertStatusBackward},
		{"terminal state", exception.ErrTerminalState},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			calls := 0
			err := retryWrite(context.Background(), "update", func() error {
				calls++
				return tc.err
			})
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, 1, calls, "domain error must not be retried")
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(errors.New(`ERROR: duplicate key value violates unique constraint "idx_alerts_dedup_key" (SQLSTATE 23505)`)))
	assert.False(t, isDuplicate(errors.New("connection refused")))
	assert.False(t, isDuplicate(nil))
}
