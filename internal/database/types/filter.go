package types

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// FilterGroup is a named, ordered list of filters.
type FilterGroup struct {
	bun.BaseModel `bun:"table:filter_groups"`

	ID      int64        `bun:",pk,autoincrement"`
	GuildID snowflake.ID `bun:",notnull"`
	Name    string       `bun:",notnull"`

	Filters []*Filter `bun:"rel:has-many,join:id=filter_group_id"`
}

// Filter is a conjunction of optional conditions. Nil or empty fields are absent conditions.
type Filter struct {
	bun.BaseModel `bun:"table:filters"`

	ID            int64 `bun:",pk,autoincrement"`
	FilterGroupID int64 `bun:",notnull"`
	Position      int64 `bun:",notnull"`

	InstantPass bool `bun:",notnull"`
	InstantFail bool `bun:",notnull"`

	// Author conditions
	UserHasAllOf      []uint64 `bun:",type:bigint[]"`
	UserHasSomeOf     []uint64 `bun:",type:bigint[]"`
	UserMissingAllOf  []uint64 `bun:",type:bigint[]"`
	UserMissingSomeOf []uint64 `bun:",type:bigint[]"`
	UserIsBot         *bool    `bun:",nullzero"`

	// Channel conditions
	InChannel                 []uint64 `bun:",type:bigint[]"`
	NotInChannel              []uint64 `bun:",type:bigint[]"`
	InChannelOrSubChannels    []uint64 `bun:",type:bigint[]"`
	NotInChannelOrSubChannels []uint64 `bun:",type:bigint[]"`

	// Message conditions
	MinAttachments *int64  `bun:",nullzero"`
	MaxAttachments *int64  `bun:",nullzero"`
	MinLength      *int64  `bun:",nullzero"`
	MaxLength      *int64  `bun:",nullzero"`
	Matches        *string `bun:",nullzero"`
	NotMatches     *string `bun:",nullzero"`
	OlderThan      *int64  `bun:",nullzero"`
	NewerThan      *int64  `bun:",nullzero"`

	// Voter conditions
	VoterHasAllOf      []uint64 `bun:",type:bigint[]"`
	VoterHasSomeOf     []uint64 `bun:",type:bigint[]"`
	VoterMissingAllOf  []uint64 `bun:",type:bigint[]"`
	VoterMissingSomeOf []uint64 `bun:",type:bigint[]"`
}
