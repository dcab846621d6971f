// Package resolver resolves the effective starboard settings for a channel.
package resolver

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"go.uber.org/zap"
)

// Config is a starboard merged with the override that applies to a channel.
type Config struct {
	Starboard *types.Starboard
	Override  *types.Override
	Settings  types.StarboardSettings
}

// ID returns the starboard id.
func (c *Config) ID() int64 {
	return c.Starboard.ID
}

// Source loads the rows the resolver merges.
type Source interface {
	GetStarboardsByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.Starboard, error)
	GetOverridesByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.Override, error)
}

// Resolver resolves starboard configs from the database.
type Resolver struct {
	source Source
	logger *zap.Logger
}

// New creates a Resolver.
func New(source Source, logger *zap.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logger.Named("resolver"),
	}
}

// ListForChannel returns the configs of every unlocked starboard in the guild
// as they apply to a message in channelID, ordered by starboard id.
// parentID is the parent channel when channelID is a thread.
func (r *Resolver) ListForChannel(
	ctx context.Context, guildID, channelID snowflake.ID, parentID *snowflake.ID,
) ([]*Config, error) {
	starboards, err := r.source.GetStarboardsByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load starboards: %w", err)
	}

	if len(starboards) == 0 {
		return nil, nil
	}

	overrides, err := r.source.GetOverridesByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}

	configs, err := Resolve(starboards, overrides, channelID, parentID)
	if err != nil {
		// Broken overrides fall back to the starboard's own settings
		r.logger.Warn("Ignored invalid overrides",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))
	}

	return configs, nil
}

// Resolve merges overrides onto starboards for one channel. Every unlocked
// starboard yields a config; an override that fails to merge is skipped and
// its error is returned alongside the complete result.
func Resolve(
	starboards []*types.Starboard, overrides []*types.Override, channelID snowflake.ID, parentID *snowflake.ID,
) ([]*Config, error) {
	sorted := slices.Clone(overrides)
	slices.SortFunc(sorted, func(a, b *types.Override) int {
		return cmp.Compare(a.ID, b.ID)
	})

	configs := make([]*Config, 0, len(starboards))

	var errs []error

	for _, sb := range starboards {
		if sb.PremiumLocked {
			continue
		}

		cfg := &Config{Starboard: sb, Settings: sb.Settings}

		if ov := findOverride(sorted, sb.ID, channelID, parentID); ov != nil {
			merged, err := types.MergeOverrides(sb.Settings, ov.Overrides)
			if err != nil {
				errs = append(errs, fmt.Errorf("override %q: %w", ov.Name, err))
			} else {
				cfg.Override = ov
				cfg.Settings = merged
			}
		}

		configs = append(configs, cfg)
	}

	slices.SortFunc(configs, func(a, b *Config) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	return configs, errors.Join(errs...)
}

// findOverride returns the first override of the starboard that targets the
// channel itself, else the first one that targets its parent.
func findOverride(
	overrides []*types.Override, starboardID int64, channelID snowflake.ID, parentID *snowflake.ID,
) *types.Override {
	var parentMatch *types.Override

	for _, ov := range overrides {
		if ov.StarboardID != starboardID {
			continue
		}
		if ov.HasChannel(channelID) {
			return ov
		}
		if parentMatch == nil && parentID != nil && ov.HasChannel(*parentID) {
			parentMatch = ov
		}
	}

	return parentMatch
}

// Emojis returns the union of every vote emoji across configs.
func Emojis(configs []*Config) []string {
	var emojis []string

	for _, cfg := range configs {
		for _, e := range cfg.Settings.UpvoteEmojis {
			if !slices.Contains(emojis, e) {
				emojis = append(emojis, e)
			}
		}
		for _, e := range cfg.Settings.DownvoteEmojis {
			if !slices.Contains(emojis, e) {
				emojis = append(emojis, e)
			}
		}
	}

	return emojis
}

// GuildEmojis returns every vote emoji used anywhere in the guild: the
// emojis of each unlocked starboard and of each override applied to it.
func (r *Resolver) GuildEmojis(ctx context.Context, guildID snowflake.ID) ([]string, error) {
	starboards, err := r.source.GetStarboardsByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load starboards: %w", err)
	}

	if len(starboards) == 0 {
		return nil, nil
	}

	overrides, err := r.source.GetOverridesByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}

	byID := make(map[int64]*types.Starboard, len(starboards))
	configs := make([]*Config, 0, len(starboards)+len(overrides))

	for _, sb := range starboards {
		if sb.PremiumLocked {
			continue
		}
		byID[sb.ID] = sb
		configs = append(configs, &Config{Starboard: sb, Settings: sb.Settings})
	}

	for _, ov := range overrides {
		sb, ok := byID[ov.StarboardID]
		if !ok {
			continue
		}

		merged, err := types.MergeOverrides(sb.Settings, ov.Overrides)
		if err != nil {
			continue
		}
		configs = append(configs, &Config{Starboard: sb, Override: ov, Settings: merged})
	}

	return Emojis(configs), nil
}
