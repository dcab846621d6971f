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

// FilterModel handles database operations for filter groups and filters.
type FilterModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewFilter creates a FilterModel with database access.
func NewFilter(db *bun.DB, logger *zap.Logger) *FilterModel {
	return &FilterModel{
		db:     db,
		logger: logger.Named("db_filter"),
	}
}

// CreateGroup inserts a filter group. Returns dbretry.ErrAlreadyExists if the name is taken.
func (m *FilterModel) CreateGroup(ctx context.Context, guildID snowflake.ID, name string) (*types.FilterGroup, error) {
	group := &types.FilterGroup{GuildID: guildID, Name: name}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(group).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		if dbretry.IsUniqueViolation(err) {
			return nil, dbretry.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create filter group: %w (guildID=%d)", err, guildID)
	}

	return group, nil
}

// GetGroupByName retrieves a filter group with its filters ordered by position.
func (m *FilterModel) GetGroupByName(ctx context.Context, guildID snowflake.ID, name string) (*types.FilterGroup, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.FilterGroup, error) {
		group := new(types.FilterGroup)

		err := m.db.NewSelect().Model(group).
			Relation("Filters", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("position ASC")
			}).
			Where("filter_group.guild_id = ?", guildID).
			Where("filter_group.name = ?", name).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to get filter group: %w (guildID=%d, name=%s)", err, guildID, name)
		}

		return group, nil
	})
}

// GetGroups retrieves filter groups by id, with filters ordered by position.
// Groups are returned in the order of ids; unknown ids are skipped.
func (m *FilterModel) GetGroups(ctx context.Context, ids []int64) ([]*types.FilterGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	groups, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.FilterGroup, error) {
		var groups []*types.FilterGroup

		err := m.db.NewSelect().Model(&groups).
			Relation("Filters", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("position ASC")
			}).
			Where("filter_group.id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get filter groups: %w", err)
		}

		return groups, nil
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*types.FilterGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	ordered := make([]*types.FilterGroup, 0, len(groups))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			ordered = append(ordered, g)
		}
	}

	return ordered, nil
}

// GetGroupsByGuild returns every filter group of a guild without filters.
func (m *FilterModel) GetGroupsByGuild(ctx context.Context, guildID snowflake.ID) ([]*types.FilterGroup, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.FilterGroup, error) {
		var groups []*types.FilterGroup

		err := m.db.NewSelect().Model(&groups).
			Where("guild_id = ?", guildID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get filter groups: %w (guildID=%d)", err, guildID)
		}

		return groups, nil
	})
}

// DeleteGroup deletes a filter group and its filters.
func (m *FilterModel) DeleteGroup(ctx context.Context, id int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model((*types.FilterGroup)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete filter group: %w (id=%d)", err, id)
		}
		return requireRow(res)
	})
}

// RenameGroup renames a filter group.
func (m *FilterModel) RenameGroup(ctx context.Context, id int64, name string) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model((*types.FilterGroup)(nil)).
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

// InsertFilter adds a filter at the given position, shifting later filters down.
// A position past the end appends.
func (m *FilterModel) InsertFilter(ctx context.Context, filter *types.Filter) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		var maxPos sql.NullInt64

		err := tx.NewSelect().Model((*types.Filter)(nil)).
			ColumnExpr("MAX(position)").
			Where("filter_group_id = ?", filter.FilterGroupID).
			Scan(ctx, &maxPos)
		if err != nil {
			return fmt.Errorf("failed to get filter positions: %w", err)
		}

		next := int64(1)
		if maxPos.Valid {
			next = maxPos.Int64 + 1
		}

		if filter.Position <= 0 || filter.Position > next {
			filter.Position = next
		}

		// Shift in two steps so the unique (group, position) index never collides
		if filter.Position < next {
			_, err = tx.NewUpdate().Model((*types.Filter)(nil)).
				Set("position = -(position + 1)").
				Where("filter_group_id = ?", filter.FilterGroupID).
				Where("position >= ?", filter.Position).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to shift filters: %w", err)
			}

			_, err = tx.NewUpdate().Model((*types.Filter)(nil)).
				Set("position = -position").
				Where("filter_group_id = ?", filter.FilterGroupID).
				Where("position < 0").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to shift filters: %w", err)
			}
		}

		_, err = tx.NewInsert().Model(filter).Returning("*").Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert filter: %w", err)
		}

		return nil
	})
}

// UpdateFilter writes every condition of a filter.
func (m *FilterModel) UpdateFilter(ctx context.Context, filter *types.Filter) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewUpdate().Model(filter).
			ExcludeColumn("id", "filter_group_id", "position").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update filter: %w (id=%d)", err, filter.ID)
		}
		return requireRow(res)
	})
}

// DeleteFilter removes the filter at a position and closes the gap.
func (m *FilterModel) DeleteFilter(ctx context.Context, groupID, position int64) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*types.Filter)(nil)).
			Where("filter_group_id = ?", groupID).
			Where("position = ?", position).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete filter: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}

		_, err = tx.NewUpdate().Model((*types.Filter)(nil)).
			Set("position = position - 1").
			Where("filter_group_id = ?", groupID).
			Where("position > ?", position).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to close filter gap: %w", err)
		}

		return nil
	})
}
