// Package status decides what a starboard should do with an original message.
package status

import (
	"cmp"
	"slices"

	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/resolver"
)

// Action is the outcome of a message status decision.
type Action int

const (
	NoAction Action = iota
	Send
	Remove
	Trash
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case NoAction:
		return "no-action"
	case Send:
		return "send"
	case Remove:
		return "remove"
	case Trash:
		return "trash"
	default:
		return "unknown"
	}
}

// Input is everything the decider needs for one (message, starboard) pair.
type Input struct {
	Config  *resolver.Config
	Message *types.Message
	Points  int64
	// ChannelNSFW is the live nsfw flag of the starboard channel, nil when unknown.
	ChannelNSFW *bool
	// Posted reports whether a starboard post currently exists.
	Posted bool
	// MeetsRequirements is false when a requirement or filter group failed.
	MeetsRequirements bool
}

// Decide runs the decision table for one starboard. The first matching row wins.
func Decide(in *Input) Action {
	action := decide(in)

	// A failed requirement never creates a new post.
	if action == Send && !in.MeetsRequirements && !in.Posted {
		return NoAction
	}

	return action
}

func decide(in *Input) Action {
	settings := &in.Config.Settings
	msg := in.Message

	switch {
	case in.ChannelNSFW == nil:
		return NoAction
	case msg.IsNSFW && !*in.ChannelNSFW:
		return Remove
	case msg.Trashed:
		return Trash
	case msg.IsForcedTo(in.Config.ID()):
		return Send
	case msg.Frozen:
		return NoAction
	case in.Points >= settings.Required:
		return Send
	case in.Points <= settings.RequiredRemove:
		return Remove
	default:
		return NoAction
	}
}

// Decision pairs an input with its computed action.
type Decision struct {
	Input  *Input
	Action Action
}

// Arbitrate enforces exclusive groups. Within each group the highest priority
// starboard that already has a post keeps acting; when none has a post, the
// highest priority one that would send wins. Every other member of the group
// gets NoAction. Decisions outside any group are untouched.
func Arbitrate(decisions []*Decision) {
	groups := make(map[int64][]*Decision)

	for _, d := range decisions {
		if g := d.Input.Config.Settings.ExclusiveGroup; g != nil && *g != 0 {
			groups[*g] = append(groups[*g], d)
		}
	}

	for _, members := range groups {
		slices.SortStableFunc(members, func(a, b *Decision) int {
			pa := a.Input.Config.Settings.ExclusiveGroupPriority
			pb := b.Input.Config.Settings.ExclusiveGroupPriority
			if c := cmp.Compare(pb, pa); c != 0 {
				return c
			}
			return cmp.Compare(a.Input.Config.ID(), b.Input.Config.ID())
		})

		winner := slices.IndexFunc(members, func(d *Decision) bool { return d.Input.Posted })
		if winner == -1 {
			winner = slices.IndexFunc(members, func(d *Decision) bool { return d.Action == Send })
		}

		for i, d := range members {
			if i != winner {
				d.Action = NoAction
			}
		}
	}
}
