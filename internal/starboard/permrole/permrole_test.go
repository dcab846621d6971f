package permrole

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestGlobal(t *testing.T) {
	t.Parallel()

	const guildID = snowflake.ID(1)

	permroles := []*types.PermRole{
		{RoleID: guildID, Vote: ptr(false)},
		{RoleID: 10, Vote: ptr(true)},
		{RoleID: 20, Vote: ptr(false), ReceiveVotes: ptr(false)},
		{RoleID: 30, ObtainXPRoles: ptr(false)},
	}
	positions := map[snowflake.ID]int{10: 1, 20: 2, 30: 3}
	set := NewSet(guildID, permroles, positions)

	tests := []struct {
		name  string
		roles []snowflake.ID
		want  Rights
	}{
		{
			name: "everyone only",
			want: Rights{Vote: false, ReceiveVotes: true, ObtainXPRoles: true},
		},
		{
			name:  "higher role grants vote",
			roles: []snowflake.ID{10},
			want:  Rights{Vote: true, ReceiveVotes: true, ObtainXPRoles: true},
		},
		{
			name:  "highest role wins",
			roles: []snowflake.ID{20, 10},
			want:  Rights{Vote: false, ReceiveVotes: false, ObtainXPRoles: true},
		},
		{
			name:  "unset values inherit",
			roles: []snowflake.ID{10, 30},
			want:  Rights{Vote: true, ReceiveVotes: true, ObtainXPRoles: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, set.Global(tt.roles))
		})
	}
}

func TestPositionOrderNotInsertionOrder(t *testing.T) {
	t.Parallel()

	permroles := []*types.PermRole{
		{RoleID: 20, Vote: ptr(true)},
		{RoleID: 10, Vote: ptr(false)},
	}

	// Role 20 is above role 10, so it is folded last
	set := NewSet(1, permroles, map[snowflake.ID]int{10: 1, 20: 5})
	assert.True(t, set.Global([]snowflake.ID{10, 20}).Vote)

	set = NewSet(1, permroles, map[snowflake.ID]int{10: 5, 20: 1})
	assert.False(t, set.Global([]snowflake.ID{10, 20}).Vote)
}

func TestDeletedRolesDropped(t *testing.T) {
	t.Parallel()

	set := NewSet(1, []*types.PermRole{{RoleID: 99, Vote: ptr(false)}}, map[snowflake.ID]int{})
	assert.True(t, set.Empty())
	assert.True(t, set.Global([]snowflake.ID{99}).Vote)
}

func TestFor(t *testing.T) {
	t.Parallel()

	permroles := []*types.PermRole{
		{
			RoleID: 10,
			Vote:   ptr(true),
			Starboards: []*types.PermRoleStarboard{
				{PermRoleID: 10, StarboardID: 7, Vote: ptr(false)},
			},
		},
		{RoleID: 20, Vote: ptr(true)},
	}
	set := NewSet(1, permroles, map[snowflake.ID]int{10: 1, 20: 2})

	// Starboard overrides are applied after every global value
	assert.False(t, set.For([]snowflake.ID{10, 20}, 7).Vote)
	assert.True(t, set.For([]snowflake.ID{10, 20}, 8).Vote)
	assert.True(t, set.For([]snowflake.ID{20}, 7).Vote)
}

func TestNilSet(t *testing.T) {
	t.Parallel()

	var set *Set
	assert.Equal(t, DefaultRights(), set.For(nil, 1))
}
