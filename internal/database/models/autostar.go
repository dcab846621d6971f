package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// AutostarModel handles database operations for autostar channels.
type AutostarModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAutostar creates an AutostarModel with database access.
func NewAutostar(db *bun.DB, logger *zap.Logger) *AutostarModel {
	return &AutostarModel{
		db:     db,
		logger: logger.Named("db_autostar"),
	}
}

// Create inserts an autostar channel. Returns dbretry.ErrAlreadyExists if the name is taken.
func (m *AutostarModel) Create(
	ctx context.Context, guildID snowflake.ID, name string, channelID snowflake.ID,
) (*types.AutostarChannel, error) {
	asc := &types.AutostarChannel{
		GuildID:   guildID,
		Name:      name,
		ChannelID: channelID,
		Emojis:    []string{"⭐"},
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(asc).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		if dbretry.IsUniqueViolation(err) {
			return nil, dbretry.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create autostar channel: %w (guildID=%d)", err, guildID)
	}

	m.logger.Debug("Created autostar channel",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("channelID", uint64(channelID)),
		zap.String("name", name))

	return asc, nil
}

// GetByName retrieves an autostar channel by name.
func (m *AutostarModel) GetByName(ctx context.Context, guildID snowflake.ID, name string) (*types.AutostarChannel, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.AutostarChannel, error) {
		asc := new(types.AutostarChannel)

		err := m.db.NewSelect().Model(asc).
			Where("guild_id = ?", guildID).
			Where("name = ?", name).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get autostar channel: %w (guildID=%d, name=%s)", err, guildID, name)
		}

		return asc, nil
	})
}

// GetByChannel returns the unlocked autostar channels watching a channel.
func (m *AutostarModel) GetByChannel(ctx context.Context, channelID snowflake.ID) ([]*types.AutostarChannel, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AutostarChannel, error) {
		var ascs []*types.AutostarChannel

		err := m.db.NewSelect().Model(&ascs).
			Where("channel_id = ?", channelID).
			Where("NOT premium_locked").
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get autostar channels: %w (channelID=%d)", err, channelID)
		}

		return ascs, nil
	})
}

// GetByGuild returns every autostar channel of a guild.
func (m *AutostarModel) GetByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.AutostarChannel, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AutostarChannel, error) {
		var ascs []*types.AutostarChannel

		err := m.db.NewSelect().Model(&ascs).
			Where("guild_id = ?", guildID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get autostar channels: %w (guildID=%d)", err, guildID)
		}

		return ascs, nil
	})
}

// Count returns the number of unlocked autostar channels in a guild.
func (m *AutostarModel) Count(ctx context.Context, guildID snowflake.ID) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := m.db.NewSelect().Model((*types.AutostarChannel)(nil)).
			Where("guild_id = ?", guildID).
			Where("NOT premium_locked").
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count autostar channels: %w (guildID=%d)", err, guildID)
		}

		return count, nil
	})
}

// Update writes every editable column of an autostar channel.
func (m *AutostarModel) Update(ctx context.Context, asc *types.AutostarChannel) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model(asc).
			Column("name", "emojis", "min_chars", "max_chars", "require_image", "delete_invalid", "filter_groups").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		return requireRow(res)
	})
	if dbretry.IsUniqueViolation(err) {
		return dbretry.ErrAlreadyExists
	}
	return err
}

// Delete removes an autostar channel.
func (m *AutostarModel) Delete(ctx context.Context, id int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model((*types.AutostarChannel)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete autostar channel: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}
