package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnvironment(t *testing.T) {
	t.Parallel()

	clusterID := 2
	development := true

	cfg := &Config{}
	cfg.Bot.Discord.Token = "file-token"
	cfg.Common.PostgreSQL.Host = "db"

	cfg.ApplyEnvironment(&Environment{
		DiscordToken:     "env-token",
		DatabaseURL:      "postgres://u:p@localhost/starboard",
		ShardCount:       16,
		ShardsPerCluster: 4,
		TotalClusters:    4,
		ClusterID:        &clusterID,
		OwnerIDs:         []uint64{1, 2},
		SentryURL:        "https://sentry.example/1",
		Development:      &development,
	})

	assert.Equal(t, "env-token", cfg.Bot.Discord.Token)
	assert.Equal(t, "postgres://u:p@localhost/starboard", cfg.Common.PostgreSQL.DSN)
	assert.Equal(t, "db", cfg.Common.PostgreSQL.Host)
	assert.Equal(t, 16, cfg.Bot.Discord.Sharding.Count)
	assert.Equal(t, 2, cfg.Bot.Discord.Sharding.ClusterID)
	assert.Equal(t, []uint64{1, 2}, cfg.Bot.Discord.OwnerIDs)
	assert.Equal(t, "https://sentry.example/1", cfg.Common.Sentry.DSN)
	assert.True(t, cfg.Common.Debug.Development)
}

func TestApplyEnvironmentKeepsFileValues(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Bot.Discord.Token = "file-token"
	cfg.Bot.Discord.Sharding.ClusterID = 3

	cfg.ApplyEnvironment(&Environment{})

	assert.Equal(t, "file-token", cfg.Bot.Discord.Token)
	assert.Equal(t, 3, cfg.Bot.Discord.Sharding.ClusterID)
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Bot.Starboard.MaxDispatch = 8
	cfg.applyDefaults()

	assert.Equal(t, 8, cfg.Bot.Starboard.MaxDispatch)
	assert.Equal(t, 100, cfg.Bot.Starboard.RegexTimeout)
	assert.Equal(t, 3, cfg.Common.Premium.FreeStarboards)
	assert.Positive(t, cfg.Worker.PremiumInterval)
}

func TestShardIDs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		sharding ShardingConfig
		want     []int
	}{
		{
			name:     "sharding disabled",
			sharding: ShardingConfig{},
			want:     nil,
		},
		{
			name:     "no clustering runs every shard",
			sharding: ShardingConfig{Count: 3},
			want:     []int{0, 1, 2},
		},
		{
			name:     "first cluster",
			sharding: ShardingConfig{Count: 8, ShardsPerCluster: 4, TotalClusters: 2, ClusterID: 0},
			want:     []int{0, 1, 2, 3},
		},
		{
			name:     "second cluster",
			sharding: ShardingConfig{Count: 8, ShardsPerCluster: 4, TotalClusters: 2, ClusterID: 1},
			want:     []int{4, 5, 6, 7},
		},
		{
			name:     "last cluster is truncated",
			sharding: ShardingConfig{Count: 5, ShardsPerCluster: 2, TotalClusters: 3, ClusterID: 2},
			want:     []int{4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.sharding.ShardIDs()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShardIDsRejectsBadCluster(t *testing.T) {
	t.Parallel()

	_, err := ShardingConfig{Count: 4, ShardsPerCluster: 2, TotalClusters: 2, ClusterID: 2}.ShardIDs()
	require.ErrorIs(t, err, ErrInvalidCluster)

	_, err = ShardingConfig{Count: 2, ShardsPerCluster: 2, TotalClusters: 3, ClusterID: 1}.ShardIDs()
	require.ErrorIs(t, err, ErrInvalidCluster)
}

func TestCheckConfigVersion(t *testing.T) {
	t.Parallel()

	require.NoError(t, checkConfigVersion("bot", 1, 1))
	require.ErrorIs(t, checkConfigVersion("bot", 0, 1), ErrConfigVersionMissing)
	require.ErrorIs(t, checkConfigVersion("bot", 2, 1), ErrConfigVersionMismatch)
}
