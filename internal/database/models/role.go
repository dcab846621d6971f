package models

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// RoleModel handles database operations for XP roles, position roles and permission roles.
type RoleModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewRole creates a RoleModel with database access.
func NewRole(db *bun.DB, logger *zap.Logger) *RoleModel {
	return &RoleModel{
		db:     db,
		logger: logger.Named("db_role"),
	}
}

// SetXPRole creates or updates an XP role.
func (m *RoleModel) SetXPRole(ctx context.Context, role *types.XPRole) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(role).
			On("CONFLICT (role_id) DO UPDATE").
			Set("required = EXCLUDED.required").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set xp role: %w (roleID=%d)", err, role.RoleID)
		}

		return nil
	})
}

// GetXPRoles returns a guild's XP roles ordered by required XP, highest first.
func (m *RoleModel) GetXPRoles(ctx context.Context, guildID snowflake.ID) ([]*types.XPRole, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.XPRole, error) {
		var roles []*types.XPRole

		err := m.db.NewSelect().Model(&roles).
			Where("guild_id = ?", guildID).
			Order("required DESC", "role_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get xp roles: %w (guildID=%d)", err, guildID)
		}

		return roles, nil
	})
}

// DeleteXPRole removes an XP role.
func (m *RoleModel) DeleteXPRole(ctx context.Context, roleID snowflake.ID) error {
	return m.deleteRole(ctx, (*types.XPRole)(nil), roleID)
}

// SetPosRole creates or updates a position role.
func (m *RoleModel) SetPosRole(ctx context.Context, role *types.PosRole) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(role).
			On("CONFLICT (role_id) DO UPDATE").
			Set("max_members = EXCLUDED.max_members").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set pos role: %w (roleID=%d)", err, role.RoleID)
		}

		return nil
	})
}

// GetPosRoles returns a guild's position roles ordered by max members, smallest first.
func (m *RoleModel) GetPosRoles(ctx context.Context, guildID snowflake.ID) ([]*types.PosRole, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PosRole, error) {
		var roles []*types.PosRole

		err := m.db.NewSelect().Model(&roles).
			Where("guild_id = ?", guildID).
			Order("max_members ASC", "role_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get pos roles: %w (guildID=%d)", err, guildID)
		}

		return roles, nil
	})
}

// GetGuildsWithPosRoles returns every guild that has at least one position role.
func (m *RoleModel) GetGuildsWithPosRoles(ctx context.Context) ([]snowflake.ID, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]snowflake.ID, error) {
		var ids []snowflake.ID

		err := m.db.NewSelect().Model((*types.PosRole)(nil)).
			ColumnExpr("DISTINCT guild_id").
			Scan(ctx, &ids)
		if err != nil {
			return nil, fmt.Errorf("failed to get guilds with pos roles: %w", err)
		}

		return ids, nil
	})
}

// DeletePosRole removes a position role.
func (m *RoleModel) DeletePosRole(ctx context.Context, roleID snowflake.ID) error {
	return m.deleteRole(ctx, (*types.PosRole)(nil), roleID)
}

// SetPermRole creates or updates a permission role.
func (m *RoleModel) SetPermRole(ctx context.Context, role *types.PermRole) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(role).
			On("CONFLICT (role_id) DO UPDATE").
			Set("vote = EXCLUDED.vote").
			Set("receive_votes = EXCLUDED.receive_votes").
			Set("obtain_xproles = EXCLUDED.obtain_xproles").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set perm role: %w (roleID=%d)", err, role.RoleID)
		}

		return nil
	})
}

// SetPermRoleStarboard creates or updates a per-starboard permission override.
func (m *RoleModel) SetPermRoleStarboard(ctx context.Context, prs *types.PermRoleStarboard) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(prs).
			On("CONFLICT (permrole_id, starboard_id) DO UPDATE").
			Set("vote = EXCLUDED.vote").
			Set("receive_votes = EXCLUDED.receive_votes").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set perm role starboard: %w (roleID=%d, starboardID=%d)",
				err, prs.PermRoleID, prs.StarboardID)
		}

		return nil
	})
}

// GetPermRoles returns a guild's permission roles with their starboard overrides.
func (m *RoleModel) GetPermRoles(ctx context.Context, guildID snowflake.ID) ([]*types.PermRole, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.PermRole, error) {
		var roles []*types.PermRole

		err := m.db.NewSelect().Model(&roles).
			Relation("Starboards").
			Where("perm_role.guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get perm roles: %w (guildID=%d)", err, guildID)
		}

		return roles, nil
	})
}

// DeletePermRole removes a permission role and its starboard overrides.
func (m *RoleModel) DeletePermRole(ctx context.Context, roleID snowflake.ID) error {
	return m.deleteRole(ctx, (*types.PermRole)(nil), roleID)
}

// DeletePermRoleStarboard removes one per-starboard permission override.
func (m *RoleModel) DeletePermRoleStarboard(ctx context.Context, roleID snowflake.ID, starboardID int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model((*types.PermRoleStarboard)(nil)).
			Where("permrole_id = ?", roleID).
			Where("starboard_id = ?", starboardID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete perm role starboard: %w (roleID=%d)", err, roleID)
		}
		return requireRow(res)
	})
}

func (m *RoleModel) deleteRole(ctx context.Context, model any, roleID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		res, err := m.db.NewDelete().Model(model).
			Where("role_id = ?", roleID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete role: %w (roleID=%d)", err, roleID)
		}
		return requireRow(res)
	})
}
