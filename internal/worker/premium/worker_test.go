package premium

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExpirer struct {
	before time.Time
	err    error
}

func (f *fakeExpirer) ProcessExpiring(_ context.Context, before time.Time) (int, error) {
	f.before = before
	return 1, f.err
}

func TestRunUsesLookahead(t *testing.T) {
	t.Parallel()

	expirer := &fakeExpirer{}
	w := New(expirer, 24*time.Hour, zap.NewNop())

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, now.Add(24*time.Hour), expirer.before)
}

func TestRunReturnsSweepError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	w := New(&fakeExpirer{err: boom}, time.Hour, zap.NewNop())

	require.ErrorIs(t, w.Run(context.Background()), boom)
}
