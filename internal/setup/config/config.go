package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sethvargo/go-envconfig"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidCluster        = errors.New("cluster id is outside the shard layout")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// Current version of the config file.
const (
	CurrentCommonVersion = 1
	CurrentBotVersion    = 1
	CurrentWorkerVersion = 1
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	Bot    BotConfig
	Worker WorkerConfig
}

// CommonConfig contains configuration shared between bot and worker.
type CommonConfig struct {
	// Version of the common config.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Sentry     Sentry     `koanf:"sentry"`
	Premium    Premium    `koanf:"premium"`
}

// BotConfig contains Discord bot specific configuration.
type BotConfig struct {
	// Version of the bot config.
	Version int `koanf:"version"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Discord configuration.
	Discord Discord `koanf:"discord"`
	// Starboard engine tuning.
	Starboard Starboard `koanf:"starboard"`
}

// WorkerConfig contains worker specific configuration.
type WorkerConfig struct {
	// Version of the worker config.
	Version int `koanf:"version"`
	// Startup delay in milliseconds.
	StartupDelay int `koanf:"startup_delay"`
	// Interval between premium expiry sweeps in seconds.
	PremiumInterval int `koanf:"premium_interval"`
	// How far ahead of expiry autoredeem is attempted, in hours.
	PremiumLookahead int `koanf:"premium_lookahead"`
	// Interval between position role reconciles in seconds.
	PosRoleInterval int `koanf:"posrole_interval"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
	// Enable pprof debugging.
	EnablePprof bool `koanf:"enable_pprof"`
	// pprof server port.
	PprofPort int `koanf:"pprof_port"`
	// Development mode logs to the console as well.
	Development bool `koanf:"development"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Full connection string. Takes precedence over the individual fields.
	DSN string `koanf:"dsn"`
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
	// Disable client side caching for servers without RESP3 tracking.
	DisableCache bool `koanf:"disable_cache"`
}

// Sentry contains error reporting configuration.
type Sentry struct {
	// DSN of the error reporting sink. Empty disables reporting.
	DSN string `koanf:"dsn"`
	// Environment name attached to events.
	Environment string `koanf:"environment"`
}

// Premium contains premium entitlement configuration.
type Premium struct {
	// Credits charged per month of premium.
	MonthCost int64 `koanf:"month_cost"`
	// Starboards a guild may have without premium.
	FreeStarboards int `koanf:"free_starboards"`
	// Autostar channels a guild may have without premium.
	FreeAutostarChannels int `koanf:"free_autostar_channels"`
}

// Discord contains Discord bot configuration.
type Discord struct {
	// Discord bot token for authentication.
	Token string `koanf:"token"`
	// Users allowed to run owner-only commands.
	OwnerIDs []uint64 `koanf:"owner_ids"`
	// Sharding configuration.
	Sharding ShardingConfig `koanf:"sharding"`
}

// ShardingConfig contains Discord sharding configuration.
type ShardingConfig struct {
	// Total number of shards (0 for auto).
	Count int `koanf:"count"`
	// Number of shards each cluster runs.
	ShardsPerCluster int `koanf:"shards_per_cluster"`
	// Number of clusters sharing the shard count.
	TotalClusters int `koanf:"total_clusters"`
	// Index of this cluster.
	ClusterID int `koanf:"cluster_id"`
}

// Starboard contains tuning for the starboard engine.
type Starboard struct {
	// Timeout in milliseconds for handling one gateway event.
	EventTimeout int `koanf:"event_timeout"`
	// Maximum concurrent starboard dispatches per message refresh.
	MaxDispatch int `koanf:"max_dispatch"`
	// Time to live of cached message snapshots in seconds.
	MessageCacheTTL int `koanf:"message_cache_ttl"`
	// Maximum number of cooldown buckets kept in memory.
	CooldownCapacity int `koanf:"cooldown_capacity"`
	// Maximum length of a user supplied regex.
	MaxRegexLength int `koanf:"max_regex_length"`
	// Regex match timeout in milliseconds.
	RegexTimeout int `koanf:"regex_timeout"`
	// Timeout in seconds for interactive views.
	ViewTimeout int `koanf:"view_timeout"`
}

// Environment holds the variables that override file configuration.
type Environment struct {
	DiscordToken     string   `env:"DISCORD_TOKEN"`
	DatabaseURL      string   `env:"DATABASE_URL"`
	ShardCount       int      `env:"SHARD_COUNT"`
	ShardsPerCluster int      `env:"SHARDS_PER_CLUSTER"`
	TotalClusters    int      `env:"TOTAL_CLUSTERS"`
	ClusterID        *int     `env:"CLUSTER_ID"`
	OwnerIDs         []uint64 `env:"OWNER_IDS"`
	SentryURL        string   `env:"SENTRY_URL"`
	Development      *bool    `env:"DEVELOPMENT"`
}

// LoadConfig loads the configuration from the config files and the environment.
// Returns the config along with the used config directory.
func LoadConfig(ctx context.Context) (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".starboard",
		homeDir + "/.starboard/config",
		"/etc/starboard/config",
		"/app/config",
		"config",
		".",
	}

	// Load all config files
	var usedConfigPath string

	configFiles := []string{"common", "bot", "worker"}
	for _, configName := range configFiles {
		configLoaded := false

		for _, path := range configPaths {
			configPath := fmt.Sprintf("%s/%s.toml", path, configName)
			if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
				configLoaded = true

				if usedConfigPath == "" {
					usedConfigPath = path
				}

				break
			}
		}

		if !configLoaded {
			return nil, "", fmt.Errorf("%w: %s.toml", ErrConfigFileNotFound, configName)
		}
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Check versions for each config file
	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("bot", config.Bot.Version, CurrentBotVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("worker", config.Worker.Version, CurrentWorkerVersion); err != nil {
		return nil, "", err
	}

	// Environment variables win over files
	var env Environment
	if err := envconfig.Process(ctx, &env); err != nil {
		return nil, "", fmt.Errorf("error reading environment: %w", err)
	}

	config.ApplyEnvironment(&env)
	config.applyDefaults()

	return &config, usedConfigPath, nil
}

// ApplyEnvironment overlays every set environment variable onto the config.
func (c *Config) ApplyEnvironment(env *Environment) {
	if env.DiscordToken != "" {
		c.Bot.Discord.Token = env.DiscordToken
	}
	if env.DatabaseURL != "" {
		c.Common.PostgreSQL.DSN = env.DatabaseURL
	}
	if env.ShardCount > 0 {
		c.Bot.Discord.Sharding.Count = env.ShardCount
	}
	if env.ShardsPerCluster > 0 {
		c.Bot.Discord.Sharding.ShardsPerCluster = env.ShardsPerCluster
	}
	if env.TotalClusters > 0 {
		c.Bot.Discord.Sharding.TotalClusters = env.TotalClusters
	}
	if env.ClusterID != nil {
		c.Bot.Discord.Sharding.ClusterID = *env.ClusterID
	}
	if len(env.OwnerIDs) > 0 {
		c.Bot.Discord.OwnerIDs = env.OwnerIDs
	}
	if env.SentryURL != "" {
		c.Common.Sentry.DSN = env.SentryURL
	}
	if env.Development != nil {
		c.Common.Debug.Development = *env.Development
	}
}

// applyDefaults fills tuning values left unset by the config files.
func (c *Config) applyDefaults() {
	sb := &c.Bot.Starboard
	if sb.EventTimeout <= 0 {
		sb.EventTimeout = 30000
	}
	if sb.MaxDispatch <= 0 {
		sb.MaxDispatch = 4
	}
	if sb.MessageCacheTTL <= 0 {
		sb.MessageCacheTTL = 3600
	}
	if sb.CooldownCapacity <= 0 {
		sb.CooldownCapacity = 50000
	}
	if sb.MaxRegexLength <= 0 {
		sb.MaxRegexLength = 1000
	}
	if sb.RegexTimeout <= 0 {
		sb.RegexTimeout = 100
	}
	if sb.ViewTimeout <= 0 {
		sb.ViewTimeout = 300
	}

	p := &c.Common.Premium
	if p.MonthCost <= 0 {
		p.MonthCost = 3
	}
	if p.FreeStarboards <= 0 {
		p.FreeStarboards = 3
	}
	if p.FreeAutostarChannels <= 0 {
		p.FreeAutostarChannels = 3
	}

	w := &c.Worker
	if w.PremiumInterval <= 0 {
		w.PremiumInterval = 3600
	}
	if w.PremiumLookahead <= 0 {
		w.PremiumLookahead = 24
	}
	if w.PosRoleInterval <= 0 {
		w.PosRoleInterval = 600
	}
}

// ShardIDs returns the shards this cluster runs. It returns nil when sharding is off.
func (s ShardingConfig) ShardIDs() ([]int, error) {
	if s.Count <= 0 {
		return nil, nil
	}

	first, last := 0, s.Count
	if s.TotalClusters > 1 && s.ShardsPerCluster > 0 {
		if s.ClusterID < 0 || s.ClusterID >= s.TotalClusters {
			return nil, fmt.Errorf("%w: cluster %d of %d", ErrInvalidCluster, s.ClusterID, s.TotalClusters)
		}

		first = s.ClusterID * s.ShardsPerCluster
		last = min(first+s.ShardsPerCluster, s.Count)
		if first >= last {
			return nil, fmt.Errorf("%w: cluster %d has no shards", ErrInvalidCluster, s.ClusterID)
		}
	}

	ids := make([]int, 0, last-first)
	for id := first; id < last; id++ {
		ids = append(ids, id)
	}

	return ids, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/starboard/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
