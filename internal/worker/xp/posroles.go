package xp

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// rankingSlack is how many extra members are ranked beyond the role slots to
// cover ranked members that already left the guild.
const rankingSlack = 25

// RefreshPosRoles reconciles the position roles of a guild. Returns
// locks.ErrAlreadyRunning when another reconcile of the guild is running.
func (m *Maintainer) RefreshPosRoles(ctx context.Context, guildID snowflake.ID) error {
	guard := m.locks.TryLock(locks.GuildPosRoles, uint64(guildID))
	if guard == nil {
		return locks.ErrAlreadyRunning
	}
	defer guard.Release()

	roles, err := m.store.GetPosRoles(ctx, guildID)
	if err != nil {
		return err
	}

	if len(roles) == 0 {
		return nil
	}

	var slots int
	for _, role := range roles {
		slots += int(role.MaxMembers)
	}

	ranked, err := m.store.GetTopMembers(ctx, guildID, slots+rankingSlack)
	if err != nil {
		return err
	}

	present := make([]*cache.Member, 0, len(ranked))
	for _, row := range ranked {
		if len(present) == slots {
			break
		}

		member, err := m.lookup.FogMember(ctx, guildID, row.UserID)
		if err != nil {
			return err
		}
		if member != nil {
			present = append(present, member)
		}
	}

	assigned := AssignPosRoles(roles, present)

	// Members holding a position role they no longer earn
	holders := make(map[snowflake.ID]*cache.Member)
	for _, member := range present {
		holders[member.UserID] = member
	}
	for _, role := range roles {
		for _, member := range m.lookup.MembersWithRole(guildID, role.RoleID) {
			if _, ok := holders[member.UserID]; !ok {
				holders[member.UserID] = member
			}
		}
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(m.opts.Parallelism)

	for _, member := range holders {
		add, remove := PosRoleChanges(roles, member.RoleIDs, assigned[member.UserID])

		p.Go(func(ctx context.Context) error {
			return m.apply(ctx, member, add, remove)
		})
	}

	if err := p.Wait(); err != nil {
		return fmt.Errorf("failed to reconcile position roles: %w (guildID=%d)", err, guildID)
	}

	m.logger.Debug("Reconciled position roles",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int("roles", len(roles)),
		zap.Int("members", len(holders)))

	return nil
}

// AssignPosRoles fills roles in ascending max members order from the ranked
// members, highest XP first. Each member receives at most one role.
func AssignPosRoles(roles []*types.PosRole, ranked []*cache.Member) map[snowflake.ID]snowflake.ID {
	sorted := slices.Clone(roles)
	slices.SortStableFunc(sorted, func(a, b *types.PosRole) int {
		if c := cmp.Compare(a.MaxMembers, b.MaxMembers); c != 0 {
			return c
		}
		return cmp.Compare(a.RoleID, b.RoleID)
	})

	assigned := make(map[snowflake.ID]snowflake.ID, len(ranked))

	next := 0
	for _, role := range sorted {
		for range role.MaxMembers {
			if next == len(ranked) {
				return assigned
			}
			assigned[ranked[next].UserID] = role.RoleID
			next++
		}
	}

	return assigned
}

// PosRoleChanges returns the position roles a member should gain and lose
// given the role they were assigned, if any.
func PosRoleChanges(roles []*types.PosRole, held []snowflake.ID, assigned snowflake.ID) (add, remove []snowflake.ID) {
	for _, role := range roles {
		has := slices.Contains(held, role.RoleID)
		want := role.RoleID == assigned

		switch {
		case want && !has:
			add = append(add, role.RoleID)
		case !want && has:
			remove = append(remove, role.RoleID)
		}
	}

	return add, remove
}
