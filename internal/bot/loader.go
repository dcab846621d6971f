package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/resolver"
)

// AutostarSource lists the autostar channels of a guild.
type AutostarSource interface {
	GetByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.AutostarChannel, error)
}

// configLoader fills the per-guild config sets of the reference cache.
type configLoader struct {
	resolver *resolver.Resolver
	autostar AutostarSource
}

// VoteEmojis implements cache.ConfigLoader.
func (l *configLoader) VoteEmojis(ctx context.Context, guildID snowflake.ID) ([]string, error) {
	return l.resolver.GuildEmojis(ctx, guildID)
}

// AutostarChannels implements cache.ConfigLoader. Premium locked channels are skipped.
func (l *configLoader) AutostarChannels(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	channels, err := l.autostar.GetByGuild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load autostar channels: %w (guildID=%d)", err, guildID)
	}

	ids := make([]snowflake.ID, 0, len(channels))
	for _, asc := range channels {
		if !asc.PremiumLocked {
			ids = append(ids, asc.ChannelID)
		}
	}

	return ids, nil
}
