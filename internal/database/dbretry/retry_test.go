package dbretry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"wrapped eof", fmt.Errorf("query: %w", errors.New("unexpected EOF")), true},
		{"plain", errors.New("syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, dbretry.IsRetryableError(tt.err))
		})
	}
}

func TestIsUniqueViolationPlainError(t *testing.T) {
	t.Parallel()
	assert.False(t, dbretry.IsUniqueViolation(errors.New("duplicate")))
	assert.False(t, dbretry.IsUniqueViolation(nil))
}

func TestNoResultRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := dbretry.NoResult(t.Context(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("broken pipe")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestOperationStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	attempts := 0
	result, err := dbretry.Operation(t.Context(), func(context.Context) (int, error) {
		attempts++
		return 0, errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, result)
}
