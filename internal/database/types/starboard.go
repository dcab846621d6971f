package types

import (
	"encoding/json"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// StarboardSettings is the settings bundle shared by starboards and overrides.
// Every field is described in the settings descriptor table.
type StarboardSettings struct {
	// Style
	DisplayEmoji     string           `bun:",notnull,default:''"`
	PingAuthor       bool             `bun:",notnull"`
	UseServerProfile bool             `bun:",notnull"`
	ExtraEmbeds      bool             `bun:",notnull"`
	UseWebhook       bool             `bun:",notnull"`
	Color            int64            `bun:",notnull"`
	GoToMessage      enum.GoToMessage `bun:",notnull"`
	AttachmentsList  bool             `bun:",notnull"`
	RepliedTo        bool             `bun:",notnull"`

	// Requirements
	Required       int64    `bun:",notnull"`
	RequiredRemove int64    `bun:",notnull"`
	UpvoteEmojis   []string `bun:",type:text[]"`
	DownvoteEmojis []string `bun:",type:text[]"`
	SelfVote       bool     `bun:",notnull"`
	AllowBots      bool     `bun:",notnull"`
	RequireImage   bool     `bun:",notnull"`
	OlderThan      int64    `bun:",notnull"`
	NewerThan      int64    `bun:",notnull"`
	Matches        *string  `bun:",nullzero"`
	NotMatches     *string  `bun:",nullzero"`
	FilterGroups   []int64  `bun:",type:bigint[]"`

	// Behavior
	Enabled                bool          `bun:",notnull"`
	AutoreactUpvote        bool          `bun:",notnull"`
	AutoreactDownvote      bool          `bun:",notnull"`
	RemoveInvalidReactions bool          `bun:",notnull"`
	LinkDeletes            bool          `bun:",notnull"`
	LinkEdits              bool          `bun:",notnull"`
	OnDelete               enum.OnDelete `bun:",notnull"`
	Private                bool          `bun:",notnull"`
	XPMultiplier           float32       `bun:"xp_multiplier,notnull"`
	CooldownEnabled        bool          `bun:",notnull"`
	CooldownCount          int64         `bun:",notnull"`
	CooldownPeriod         int64         `bun:",notnull"`
	ExclusiveGroup         *int64        `bun:",nullzero"`
	ExclusiveGroupPriority int64         `bun:",notnull"`
}

// IsUpvote reports whether the emoji counts as an upvote.
func (s *StarboardSettings) IsUpvote(emoji string) bool {
	for _, e := range s.UpvoteEmojis {
		if e == emoji {
			return true
		}
	}

	return false
}

// IsDownvote reports whether the emoji counts as a downvote.
func (s *StarboardSettings) IsDownvote(emoji string) bool {
	for _, e := range s.DownvoteEmojis {
		if e == emoji {
			return true
		}
	}

	return false
}

// Starboard is a configured republishing target within one guild.
type Starboard struct {
	bun.BaseModel `bun:"table:starboards"`

	ID            int64         `bun:",pk,autoincrement"`
	GuildID       snowflake.ID  `bun:",notnull"`
	Name          string        `bun:",notnull"`
	ChannelID     snowflake.ID  `bun:",notnull"`
	WebhookID     *snowflake.ID `bun:",nullzero"`
	PremiumLocked bool          `bun:",notnull"`

	Settings StarboardSettings `bun:",embed"`
}

// Override is a per-channel patch over a starboard's settings.
// Overrides holds the JSON of only the fields that are overridden,
// keyed by setting name.
type Override struct {
	bun.BaseModel `bun:"table:overrides"`

	ID          int64                      `bun:",pk,autoincrement"`
	GuildID     snowflake.ID               `bun:",notnull"`
	Name        string                     `bun:",notnull"`
	StarboardID int64                      `bun:",notnull"`
	ChannelIDs  []uint64                   `bun:"channel_ids,type:bigint[]"`
	Overrides   map[string]json.RawMessage `bun:",type:jsonb,notnull"`
}

// HasChannel reports whether the override targets the channel.
func (o *Override) HasChannel(channelID snowflake.ID) bool {
	for _, id := range o.ChannelIDs {
		if snowflake.ID(id) == channelID {
			return true
		}
	}

	return false
}

// ExclusiveGroup is a set of starboards among which at most one may post a message.
type ExclusiveGroup struct {
	bun.BaseModel `bun:"table:exclusive_groups"`

	ID      int64        `bun:",pk,autoincrement"`
	GuildID snowflake.ID `bun:",notnull"`
	Name    string       `bun:",notnull"`
}

// AutostarChannel is a channel where the bot reacts to every qualifying new message.
type AutostarChannel struct {
	bun.BaseModel `bun:"table:autostar_channels"`

	ID            int64        `bun:",pk,autoincrement"`
	GuildID       snowflake.ID `bun:",notnull"`
	Name          string       `bun:",notnull"`
	ChannelID     snowflake.ID `bun:",notnull"`
	Emojis        []string     `bun:",type:text[]"`
	MinChars      int64        `bun:",notnull"`
	MaxChars      *int64       `bun:",nullzero"`
	RequireImage  bool         `bun:",notnull"`
	DeleteInvalid bool         `bun:",notnull"`
	FilterGroups  []int64      `bun:",type:bigint[]"`
	PremiumLocked bool         `bun:",notnull"`
}
