package telemetry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/starboard/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestManagerCreatesSessionLogs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lm := NewManager(ServiceBot, dir, &config.Debug{LogLevel: "info", MaxLogsToKeep: 5, MaxLogLines: 100}, &config.Sentry{}, "")

	mainLogger, dbLogger, err := lm.GetLoggers()
	require.NoError(t, err)

	mainLogger.Info("hello")
	dbLogger.Warn("slow query")
	lm.Stop()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name(), "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "bot")

	data, err = os.ReadFile(filepath.Join(dir, entries[0].Name(), "database.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "slow query")
}

func TestRotateLogSessions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	for i, name := range []string{"a", "b", "c", "d"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.Mkdir(path, 0o755))
		mod := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}

	lm := &Manager{logDir: dir, debug: &config.Debug{MaxLogsToKeep: 2}}
	require.NoError(t, lm.rotateLogSessions())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"c", "d"}, names)
}

func TestErrorCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		function string
		want     string
	}{
		{"github.com/robalyx/starboard/internal/database/models.(*VoteModel).UpsertVote", "database"},
		{"github.com/robalyx/starboard/internal/starboard/refresh.(*Coordinator).Refresh", "starboard"},
		{"github.com/robalyx/starboard/internal/cache.(*Cache).FogMember", "cache"},
		{"github.com/robalyx/starboard/internal/bot/commands.(*Handler).Star", "bot"},
		{"main.main", "application"},
	}

	for _, tt := range tests {
		ent := zapcore.Entry{Caller: zapcore.EntryCaller{Defined: true, Function: tt.function}}
		assert.Equal(t, tt.want, errorCategory(ent), tt.function)
	}
}

func TestBuildEvent(t *testing.T) {
	t.Parallel()

	ent := zapcore.Entry{
		Level:   zapcore.ErrorLevel,
		Message: "Failed to send post",
		Caller: zapcore.EntryCaller{
			Defined:  true,
			Function: "github.com/robalyx/starboard/internal/starboard/refresh.(*Coordinator).send",
		},
	}

	event, extras := buildEvent(ent, []zapcore.Field{
		{Key: "error", Type: zapcore.ErrorType, Interface: os.ErrNotExist},
		{Key: "starboardID", Type: zapcore.Int64Type, Integer: 7},
	})

	require.Len(t, event.Exception, 1)
	assert.Equal(t, "Failed to send post: file does not exist", event.Exception[0].Value)
	assert.Equal(t, "send", event.Exception[0].Type)
	assert.Equal(t, "github.com/robalyx/starboard/internal/starboard", event.Exception[0].Module)
	assert.Equal(t, int64(7), extras["starboardID"])
	assert.NotContains(t, extras, "error")
}
