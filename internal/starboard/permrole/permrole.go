// Package permrole folds permission roles into the rights of a member.
package permrole

import (
	"cmp"
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
)

// Rights are the effective rights of a member. Every right defaults to true.
type Rights struct {
	Vote          bool
	ReceiveVotes  bool
	ObtainXPRoles bool
}

// DefaultRights grants everything.
func DefaultRights() Rights {
	return Rights{Vote: true, ReceiveVotes: true, ObtainXPRoles: true}
}

// Set is the permission roles of one guild ordered by role position, lowest first.
type Set struct {
	guildID snowflake.ID
	roles   []*types.PermRole
}

// NewSet orders permroles by the positions of their roles. The @everyone
// role (whose id is the guild id) always comes first. Roles missing from
// positions are treated as deleted and dropped.
func NewSet(guildID snowflake.ID, permroles []*types.PermRole, positions map[snowflake.ID]int) *Set {
	roles := make([]*types.PermRole, 0, len(permroles))
	for _, pr := range permroles {
		if pr.RoleID == guildID {
			roles = append(roles, pr)
			continue
		}
		if _, ok := positions[pr.RoleID]; ok {
			roles = append(roles, pr)
		}
	}

	slices.SortStableFunc(roles, func(a, b *types.PermRole) int {
		pa, pb := -1, -1
		if a.RoleID != guildID {
			pa = positions[a.RoleID]
		}
		if b.RoleID != guildID {
			pb = positions[b.RoleID]
		}
		if c := cmp.Compare(pa, pb); c != 0 {
			return c
		}
		return cmp.Compare(a.RoleID, b.RoleID)
	})

	return &Set{guildID: guildID, roles: roles}
}

// Empty reports whether the guild has no permission roles.
func (s *Set) Empty() bool {
	return s == nil || len(s.roles) == 0
}

// Global returns the rights of a member ignoring starboard overrides.
func (s *Set) Global(memberRoles []snowflake.ID) Rights {
	rights := DefaultRights()
	if s.Empty() {
		return rights
	}

	for _, pr := range s.held(memberRoles) {
		apply(&rights.Vote, pr.Vote)
		apply(&rights.ReceiveVotes, pr.ReceiveVotes)
		apply(&rights.ObtainXPRoles, pr.ObtainXPRoles)
	}

	return rights
}

// For returns the rights of a member on one starboard. Starboard overrides
// are folded after every global value.
func (s *Set) For(memberRoles []snowflake.ID, starboardID int64) Rights {
	rights := s.Global(memberRoles)
	if s.Empty() {
		return rights
	}

	for _, pr := range s.held(memberRoles) {
		for _, prs := range pr.Starboards {
			if prs.StarboardID != starboardID {
				continue
			}
			apply(&rights.Vote, prs.Vote)
			apply(&rights.ReceiveVotes, prs.ReceiveVotes)
		}
	}

	return rights
}

// held returns the permission roles the member holds, in fold order.
func (s *Set) held(memberRoles []snowflake.ID) []*types.PermRole {
	held := make([]*types.PermRole, 0, len(s.roles))
	for _, pr := range s.roles {
		if pr.RoleID == s.guildID || slices.Contains(memberRoles, pr.RoleID) {
			held = append(held, pr)
		}
	}

	return held
}

func apply(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
