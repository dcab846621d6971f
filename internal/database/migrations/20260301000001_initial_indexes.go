package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Names are unique within a guild
			CREATE UNIQUE INDEX IF NOT EXISTS idx_starboards_guild_name ON starboards (guild_id, name);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_overrides_guild_name ON overrides (guild_id, name);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_autostar_channels_guild_name ON autostar_channels (guild_id, name);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_exclusive_groups_guild_name ON exclusive_groups (guild_id, name);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_filter_groups_guild_name ON filter_groups (guild_id, name);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_filters_group_position ON filters (filter_group_id, position);

			-- Lookup indexes
			CREATE INDEX IF NOT EXISTS idx_starboards_guild ON starboards (guild_id);
			CREATE INDEX IF NOT EXISTS idx_overrides_starboard ON overrides (starboard_id);
			CREATE INDEX IF NOT EXISTS idx_overrides_channels ON overrides USING GIN (channel_ids);
			CREATE INDEX IF NOT EXISTS idx_autostar_channels_channel ON autostar_channels (channel_id);
			CREATE INDEX IF NOT EXISTS idx_messages_guild ON messages (guild_id);
			CREATE INDEX IF NOT EXISTS idx_starboard_messages_starboard ON starboard_messages (starboard_id);
			CREATE INDEX IF NOT EXISTS idx_votes_target_author ON votes (starboard_id, target_author_id);
			CREATE INDEX IF NOT EXISTS idx_votes_message ON votes (message_id);
			CREATE INDEX IF NOT EXISTS idx_members_guild_xp ON members (guild_id, xp DESC);
			CREATE INDEX IF NOT EXISTS idx_xproles_guild ON xproles (guild_id);
			CREATE INDEX IF NOT EXISTS idx_posroles_guild ON posroles (guild_id);
			CREATE INDEX IF NOT EXISTS idx_permroles_guild ON permroles (guild_id);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_starboards_guild_name;
			DROP INDEX IF EXISTS idx_overrides_guild_name;
			DROP INDEX IF EXISTS idx_autostar_channels_guild_name;
			DROP INDEX IF EXISTS idx_exclusive_groups_guild_name;
			DROP INDEX IF EXISTS idx_filter_groups_guild_name;
			DROP INDEX IF EXISTS idx_filters_group_position;
			DROP INDEX IF EXISTS idx_starboards_guild;
			DROP INDEX IF EXISTS idx_overrides_starboard;
			DROP INDEX IF EXISTS idx_overrides_channels;
			DROP INDEX IF EXISTS idx_autostar_channels_channel;
			DROP INDEX IF EXISTS idx_messages_guild;
			DROP INDEX IF EXISTS idx_starboard_messages_starboard;
			DROP INDEX IF EXISTS idx_votes_target_author;
			DROP INDEX IF EXISTS idx_votes_message;
			DROP INDEX IF EXISTS idx_members_guild_xp;
			DROP INDEX IF EXISTS idx_xproles_guild;
			DROP INDEX IF EXISTS idx_posroles_guild;
			DROP INDEX IF EXISTS idx_permroles_guild;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
