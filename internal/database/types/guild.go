package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Guild is a chat guild the bot has observed.
type Guild struct {
	bun.BaseModel `bun:"table:guilds"`

	GuildID    snowflake.ID `bun:",pk"`
	PremiumEnd *time.Time   `bun:",nullzero"`
}

// IsPremium reports whether the guild has active premium at the given time.
func (g *Guild) IsPremium(now time.Time) bool {
	return g != nil && g.PremiumEnd != nil && g.PremiumEnd.After(now)
}

// User is a chat user the bot has observed.
type User struct {
	bun.BaseModel `bun:"table:users"`

	UserID  snowflake.ID `bun:",pk"`
	IsBot   bool         `bun:",notnull"`
	Credits int64        `bun:",notnull"`
}

// Member is a user within one guild.
type Member struct {
	bun.BaseModel `bun:"table:members"`

	GuildID           snowflake.ID `bun:",pk"`
	UserID            snowflake.ID `bun:",pk"`
	XP                float32      `bun:"xp,notnull"`
	AutoredeemEnabled bool         `bun:",notnull"`
}
