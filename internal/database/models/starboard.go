package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a row looked up by name or id does not exist.
var ErrNotFound = errors.New("not found")

// StarboardModel handles database operations for starboards, overrides and exclusive groups.
type StarboardModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewStarboard creates a StarboardModel with database access.
func NewStarboard(db *bun.DB, logger *zap.Logger) *StarboardModel {
	return &StarboardModel{
		db:     db,
		logger: logger.Named("db_starboard"),
	}
}

// CreateStarboard inserts a starboard with default settings.
// Returns dbretry.ErrAlreadyExists if the name is taken.
func (m *StarboardModel) CreateStarboard(
	ctx context.Context, guildID snowflake.ID, name string, channelID snowflake.ID,
) (*types.Starboard, error) {
	sb := &types.Starboard{
		GuildID:   guildID,
		Name:      name,
		ChannelID: channelID,
		Settings:  types.DefaultSettings(),
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(sb).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		if dbretry.IsUniqueViolation(err) {
			return nil, dbretry.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create starboard: %w (guildID=%d)", err, guildID)
	}

	m.logger.Debug("Created starboard",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int64("starboardID", sb.ID),
		zap.String("name", name))

	return sb, nil
}

// GetStarboard retrieves a starboard by id.
func (m *StarboardModel) GetStarboard(ctx context.Context, id int64) (*types.Starboard, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Starboard, error) {
		sb := new(types.Starboard)

		err := m.db.NewSelect().Model(sb).Where("id = ?", id).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get starboard: %w (id=%d)", err, id)
		}

		return sb, nil
	})
}

// GetStarboardByName retrieves a starboard by its name within a guild.
func (m *StarboardModel) GetStarboardByName(ctx context.Context, guildID snowflake.ID, name string) (*types.Starboard, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Starboard, error) {
		sb := new(types.Starboard)

		err := m.db.NewSelect().Model(sb).
			Where("guild_id = ?", guildID).
			Where("name = ?", name).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get starboard: %w (guildID=%d, name=%s)", err, guildID, name)
		}

		return sb, nil
	})
}

// GetStarboardsByGuild returns every starboard of a guild ordered by id.
func (m *StarboardModel) GetStarboardsByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.Starboard, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Starboard, error) {
		var starboards []*types.Starboard

		err := m.db.NewSelect().Model(&starboards).
			Where("guild_id = ?", guildID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get starboards: %w (guildID=%d)", err, guildID)
		}

		return starboards, nil
	})
}

// GetStarboardsByIDs returns the starboards with the given ids ordered by id.
func (m *StarboardModel) GetStarboardsByIDs(ctx context.Context, ids []int64) ([]*types.Starboard, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Starboard, error) {
		var starboards []*types.Starboard

		err := m.db.NewSelect().Model(&starboards).
			Where("id IN (?)", bun.In(ids)).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get starboards by ids: %w", err)
		}

		return starboards, nil
	})
}

// CountStarboards returns the number of unlocked starboards in a guild.
func (m *StarboardModel) CountStarboards(ctx context.Context, guildID snowflake.ID) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := m.db.NewSelect().Model((*types.Starboard)(nil)).
			Where("guild_id = ?", guildID).
			Where("NOT premium_locked").
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count starboards: %w (guildID=%d)", err, guildID)
		}

		return count, nil
	})
}

// RenameStarboard renames a starboard. Returns dbretry.ErrAlreadyExists if the name is taken.
func (m *StarboardModel) RenameStarboard(ctx context.Context, id int64, name string) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model((*types.Starboard)(nil)).
			Set("name = ?", name).
			Where("id = ?", id).
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

// SetStarboardChannel changes the target channel of a starboard.
func (m *StarboardModel) SetStarboardChannel(ctx context.Context, id int64, channelID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model((*types.Starboard)(nil)).
			Set("channel_id = ?", channelID).
			Set("webhook_id = NULL").
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set starboard channel: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}

// DeleteStarboard deletes a starboard and, through foreign keys, its overrides, posts and votes.
func (m *StarboardModel) DeleteStarboard(ctx context.Context, id int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model((*types.Starboard)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete starboard: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}

// UpdateStarboardSettings writes the named settings of s to the starboard.
func (m *StarboardModel) UpdateStarboardSettings(
	ctx context.Context, id int64, s *types.StarboardSettings, names ...string,
) error {
	if len(names) == 0 {
		return nil
	}

	fields := make([]types.SettingField, 0, len(names))
	for _, name := range names {
		f, err := types.SettingByName(name)
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		q := m.db.NewUpdate().Model((*types.Starboard)(nil)).Where("id = ?", id)
		for _, f := range fields {
			q = q.Set("? = ?", bun.Ident(f.Name()), f.SQLValue(s))
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update starboard settings: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Updated starboard settings",
		zap.Int64("starboardID", id),
		zap.Strings("settings", names))

	return nil
}

// SetWebhook stores or clears the webhook id used by a starboard.
func (m *StarboardModel) SetWebhook(ctx context.Context, id int64, webhookID *snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().Model((*types.Starboard)(nil)).
			Set("webhook_id = ?", webhookID).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set webhook: %w (id=%d)", err, id)
		}

		return nil
	})
}

// CreateOverride inserts an override. Returns dbretry.ErrAlreadyExists if the name is taken.
func (m *StarboardModel) CreateOverride(
	ctx context.Context, guildID snowflake.ID, name string, starboardID int64, channelIDs []uint64,
) (*types.Override, error) {
	ov := &types.Override{
		GuildID:     guildID,
		Name:        name,
		StarboardID: starboardID,
		ChannelIDs:  channelIDs,
		Overrides:   map[string]json.RawMessage{},
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(ov).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		if dbretry.IsUniqueViolation(err) {
			return nil, dbretry.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create override: %w (guildID=%d)", err, guildID)
	}

	return ov, nil
}

// GetOverrideByName retrieves an override by its name within a guild.
func (m *StarboardModel) GetOverrideByName(ctx context.Context, guildID snowflake.ID, name string) (*types.Override, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Override, error) {
		ov := new(types.Override)

		err := m.db.NewSelect().Model(ov).
			Where("guild_id = ?", guildID).
			Where("name = ?", name).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get override: %w (guildID=%d, name=%s)", err, guildID, name)
		}

		return ov, nil
	})
}

// GetOverridesByGuild returns every override of a guild ordered by id.
func (m *StarboardModel) GetOverridesByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.Override, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Override, error) {
		var overrides []*types.Override

		err := m.db.NewSelect().Model(&overrides).
			Where("guild_id = ?", guildID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get overrides: %w (guildID=%d)", err, guildID)
		}

		return overrides, nil
	})
}

// RenameOverride renames an override. Returns dbretry.ErrAlreadyExists if the name is taken.
func (m *StarboardModel) RenameOverride(ctx context.Context, id int64, name string) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model((*types.Override)(nil)).
			Set("name = ?", name).
			Where("id = ?", id).
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

// SetOverrideChannels replaces the channels an override applies to.
func (m *StarboardModel) SetOverrideChannels(ctx context.Context, id int64, channelIDs []uint64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model((*types.Override)(nil)).
			Set("channel_ids = ?", pgdialect.Array(channelIDs)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set override channels: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}

// SetOverrideValues replaces the overridden settings JSON of an override.
func (m *StarboardModel) SetOverrideValues(ctx context.Context, id int64, values map[string]json.RawMessage) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model(&types.Override{ID: id, Overrides: values}).
			Column("overrides").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set override values: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}

// DeleteOverride deletes an override.
func (m *StarboardModel) DeleteOverride(ctx context.Context, id int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model((*types.Override)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete override: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}

// CreateExclusiveGroup inserts an exclusive group. Returns dbretry.ErrAlreadyExists if the name is taken.
func (m *StarboardModel) CreateExclusiveGroup(
	ctx context.Context, guildID snowflake.ID, name string,
) (*types.ExclusiveGroup, error) {
	group := &types.ExclusiveGroup{GuildID: guildID, Name: name}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(group).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		if dbretry.IsUniqueViolation(err) {
			return nil, dbretry.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create exclusive group: %w (guildID=%d)", err, guildID)
	}

	return group, nil
}

// GetExclusiveGroupByName retrieves an exclusive group by name.
func (m *StarboardModel) GetExclusiveGroupByName(
	ctx context.Context, guildID snowflake.ID, name string,
) (*types.ExclusiveGroup, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.ExclusiveGroup, error) {
		group := new(types.ExclusiveGroup)

		err := m.db.NewSelect().Model(group).
			Where("guild_id = ?", guildID).
			Where("name = ?", name).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get exclusive group: %w (guildID=%d, name=%s)", err, guildID, name)
		}

		return group, nil
	})
}

// GetExclusiveGroups returns the exclusive groups of a guild ordered by id.
func (m *StarboardModel) GetExclusiveGroups(ctx context.Context, guildID snowflake.ID) ([]*types.ExclusiveGroup, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ExclusiveGroup, error) {
		var groups []*types.ExclusiveGroup

		err := m.db.NewSelect().Model(&groups).
			Where("guild_id = ?", guildID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get exclusive groups: %w (guildID=%d)", err, guildID)
		}

		return groups, nil
	})
}

// RenameExclusiveGroup renames an exclusive group.
func (m *StarboardModel) RenameExclusiveGroup(ctx context.Context, id int64, name string) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model((*types.ExclusiveGroup)(nil)).
			Set("name = ?", name).
			Where("id = ?", id).
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

// DeleteExclusiveGroup deletes an exclusive group. Member starboards are detached by trigger.
func (m *StarboardModel) DeleteExclusiveGroup(ctx context.Context, id int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model((*types.ExclusiveGroup)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete exclusive group: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}

// requireRow returns ErrNotFound when a statement touched no rows.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
