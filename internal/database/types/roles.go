package types

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// XPRole is a role awarded to members reaching the required XP.
type XPRole struct {
	bun.BaseModel `bun:"table:xproles"`

	RoleID   snowflake.ID `bun:",pk"`
	GuildID  snowflake.ID `bun:",notnull"`
	Required int64        `bun:",notnull"`
}

// PosRole is a role awarded to the top members by XP, capped at MaxMembers.
type PosRole struct {
	bun.BaseModel `bun:"table:posroles"`

	RoleID     snowflake.ID `bun:",pk"`
	GuildID    snowflake.ID `bun:",notnull"`
	MaxMembers int64        `bun:",notnull"`
}

// PermRole grants or denies rights to holders of a role. Nil means inherit.
type PermRole struct {
	bun.BaseModel `bun:"table:permroles"`

	RoleID        snowflake.ID `bun:",pk"`
	GuildID       snowflake.ID `bun:",notnull"`
	Vote          *bool        `bun:",nullzero"`
	ReceiveVotes  *bool        `bun:",nullzero"`
	ObtainXPRoles *bool        `bun:"obtain_xproles,nullzero"`

	Starboards []*PermRoleStarboard `bun:"rel:has-many,join:role_id=permrole_id"`
}

// PermRoleStarboard overrides a PermRole's rights for one starboard.
type PermRoleStarboard struct {
	bun.BaseModel `bun:"table:permrole_starboards"`

	PermRoleID   snowflake.ID `bun:"permrole_id,pk"`
	StarboardID  int64        `bun:",pk"`
	Vote         *bool        `bun:",nullzero"`
	ReceiveVotes *bool        `bun:",nullzero"`
}
