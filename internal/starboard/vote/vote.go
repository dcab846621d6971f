// Package vote classifies reaction votes.
package vote

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/starboard/permrole"
	"github.com/robalyx/starboard/internal/starboard/resolver"
)

// Kind is the kind of a classified vote.
type Kind int

const (
	// Ignore means the reaction is not a vote.
	Ignore Kind = iota
	// Remove means the reaction is an invalid vote and should be deleted.
	Remove
	// Valid means the reaction counts on at least one starboard.
	Valid
)

func (k Kind) String() string {
	switch k {
	case Ignore:
		return "ignore"
	case Remove:
		return "remove"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

// Status is the classification of one reaction.
type Status struct {
	Kind Kind
	// Upvote and Downvote are the starboards the vote counts on. Set only for Valid.
	Upvote   []*resolver.Config
	Downvote []*resolver.Config
}

// Input describes one reaction.
type Input struct {
	Emoji       string
	Configs     []*resolver.Config
	VoterID     snowflake.ID
	AuthorID    snowflake.ID
	AuthorIsBot bool
	// VoterRights and AuthorRights return the rights on one starboard. Nil grants everything.
	VoterRights  func(starboardID int64) permrole.Rights
	AuthorRights func(starboardID int64) permrole.Rights
	// Eligible applies the remaining per-starboard checks such as
	// requirements, filters and cooldowns. Nil accepts every starboard.
	Eligible func(cfg *resolver.Config, downvote bool) bool
}

// Classify decides what a reaction means. Candidate starboards are the
// enabled ones whose vote emojis include the reaction. A candidate is dropped
// when the voter may not vote, the author may not receive votes, the voter is
// the author without self_vote, the author is a bot without allow_bots, or
// Eligible rejects it. If no candidate is left, the reaction is removed when
// any dropped starboard has remove_invalid_reactions.
func Classify(in *Input) Status {
	var (
		upvotes, downvotes []*resolver.Config
		candidates         int
		removeInvalid      bool
	)

	for _, cfg := range in.Configs {
		s := &cfg.Settings
		if !s.Enabled {
			continue
		}

		var isDownvote bool
		switch {
		case s.IsUpvote(in.Emoji):
		case s.IsDownvote(in.Emoji):
			isDownvote = true
		default:
			continue
		}

		candidates++

		if !validFor(in, cfg, isDownvote) {
			removeInvalid = removeInvalid || s.RemoveInvalidReactions
			continue
		}

		if isDownvote {
			downvotes = append(downvotes, cfg)
		} else {
			upvotes = append(upvotes, cfg)
		}
	}

	switch {
	case candidates == 0:
		return Status{Kind: Ignore}
	case len(upvotes) == 0 && len(downvotes) == 0:
		if removeInvalid {
			return Status{Kind: Remove}
		}
		return Status{Kind: Ignore}
	default:
		return Status{Kind: Valid, Upvote: upvotes, Downvote: downvotes}
	}
}

func validFor(in *Input, cfg *resolver.Config, downvote bool) bool {
	s := &cfg.Settings

	if in.VoterRights != nil && !in.VoterRights(cfg.ID()).Vote {
		return false
	}
	if in.AuthorRights != nil && !in.AuthorRights(cfg.ID()).ReceiveVotes {
		return false
	}
	if in.VoterID == in.AuthorID && !s.SelfVote {
		return false
	}
	if in.AuthorIsBot && !s.AllowBots {
		return false
	}
	if in.Eligible != nil && !in.Eligible(cfg, downvote) {
		return false
	}

	return true
}

// IDs returns the starboard ids of configs.
func IDs(configs []*resolver.Config) []int64 {
	ids := make([]int64, 0, len(configs))
	for _, cfg := range configs {
		ids = append(ids, cfg.ID())
	}

	return ids
}
