package types

import (
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Message is an original message that has received at least one vote.
type Message struct {
	bun.BaseModel `bun:"table:messages"`

	MessageID   snowflake.ID `bun:",pk"`
	GuildID     snowflake.ID `bun:",notnull"`
	ChannelID   snowflake.ID `bun:",notnull"`
	AuthorID    snowflake.ID `bun:",notnull"`
	IsNSFW      bool         `bun:"is_nsfw,notnull"`
	ForcedTo    []int64      `bun:",type:bigint[]"`
	Trashed     bool         `bun:",notnull"`
	TrashReason *string      `bun:",nullzero"`
	Frozen      bool         `bun:",notnull"`
}

// IsForcedTo reports whether the message is forced to the starboard.
func (m *Message) IsForcedTo(starboardID int64) bool {
	return slices.Contains(m.ForcedTo, starboardID)
}

// StarboardMessage links an original message to its post on one starboard.
// A nil StarboardMessageID means the post was pending but dropped.
type StarboardMessage struct {
	bun.BaseModel `bun:"table:starboard_messages"`

	MessageID           snowflake.ID  `bun:",pk"`
	StarboardID         int64         `bun:",pk"`
	StarboardMessageID  *snowflake.ID `bun:",nullzero,unique"`
	LastKnownPointCount int64         `bun:",notnull"`
}

// Vote is a single reaction vote on a message for one starboard.
type Vote struct {
	bun.BaseModel `bun:"table:votes"`

	MessageID      snowflake.ID `bun:",pk"`
	StarboardID    int64        `bun:",pk"`
	UserID         snowflake.ID `bun:",pk"`
	TargetAuthorID snowflake.ID `bun:",notnull"`
	IsDownvote     bool         `bun:",notnull"`
}

// VoteCount is the tally of votes for one starboard.
type VoteCount struct {
	StarboardID int64 `bun:"starboard_id"`
	Upvotes     int64 `bun:"upvotes"`
	Downvotes   int64 `bun:"downvotes"`
}

// Points returns upvotes minus downvotes.
func (c VoteCount) Points() int64 {
	return c.Upvotes - c.Downvotes
}
