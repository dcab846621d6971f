package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/starboard/internal/bot/validation"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/database/types"
)

// maxFilters caps the filters of one group.
const maxFilters = 50

// condition is one optional condition of a filter.
type condition interface {
	// set parses input into the condition. "none" clears it.
	set(p *settingParser, f *types.Filter, input string) error
	// render describes the condition, or returns false when it is absent.
	render(f *types.Filter) (string, bool)
}

type idsCondition struct {
	mention string
	ptr     func(f *types.Filter) *[]uint64
}

func (c idsCondition) set(_ *settingParser, f *types.Filter, input string) error {
	if isNone(input) {
		*c.ptr(f) = nil
		return nil
	}
	ids, err := parseIDs(input)
	if err != nil {
		return err
	}
	*c.ptr(f) = toUint64s(ids)
	return nil
}

func (c idsCondition) render(f *types.Filter) (string, bool) {
	ids := *c.ptr(f)
	if len(ids) == 0 {
		return "", false
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf(c.mention, id)
	}
	return strings.Join(parts, " "), true
}

type boolCondition struct {
	ptr func(f *types.Filter) **bool
}

func (c boolCondition) set(_ *settingParser, f *types.Filter, input string) error {
	if isNone(input) {
		*c.ptr(f) = nil
		return nil
	}
	v, err := validation.Bool(input)
	if err != nil {
		return err
	}
	*c.ptr(f) = &v
	return nil
}

func (c boolCondition) render(f *types.Filter) (string, bool) {
	v := *c.ptr(f)
	if v == nil {
		return "", false
	}
	return fmt.Sprint(*v), true
}

type intCondition struct {
	lo, hi int64
	ptr    func(f *types.Filter) **int64
}

func (c intCondition) set(_ *settingParser, f *types.Filter, input string) error {
	if isNone(input) {
		*c.ptr(f) = nil
		return nil
	}
	v, err := validation.Int(input, c.lo, c.hi)
	if err != nil {
		return err
	}
	*c.ptr(f) = &v
	return nil
}

func (c intCondition) render(f *types.Filter) (string, bool) {
	v := *c.ptr(f)
	if v == nil {
		return "", false
	}
	return fmt.Sprint(*v), true
}

type regexCondition struct {
	ptr func(f *types.Filter) **string
}

func (c regexCondition) set(p *settingParser, f *types.Filter, input string) error {
	if isNone(input) {
		*c.ptr(f) = nil
		return nil
	}
	if err := validation.Regex(input, p.premium, p.maxRegex); err != nil {
		return err
	}
	*c.ptr(f) = &input
	return nil
}

func (c regexCondition) render(f *types.Filter) (string, bool) {
	v := *c.ptr(f)
	if v == nil {
		return "", false
	}
	return "`" + *v + "`", true
}

const (
	roleMention    = "<@&%d>"
	channelMention = "<#%d>"
)

var conditions = map[string]condition{
	"user-has-all-of":      idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.UserHasAllOf }},
	"user-has-some-of":     idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.UserHasSomeOf }},
	"user-missing-all-of":  idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.UserMissingAllOf }},
	"user-missing-some-of": idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.UserMissingSomeOf }},
	"user-is-bot":          boolCondition{func(f *types.Filter) **bool { return &f.UserIsBot }},

	"in-channel":     idsCondition{channelMention, func(f *types.Filter) *[]uint64 { return &f.InChannel }},
	"not-in-channel": idsCondition{channelMention, func(f *types.Filter) *[]uint64 { return &f.NotInChannel }},
	"in-channel-or-sub-channels": idsCondition{channelMention, func(f *types.Filter) *[]uint64 {
		return &f.InChannelOrSubChannels
	}},
	"not-in-channel-or-sub-channels": idsCondition{channelMention, func(f *types.Filter) *[]uint64 {
		return &f.NotInChannelOrSubChannels
	}},

	"min-attachments": intCondition{0, 10, func(f *types.Filter) **int64 { return &f.MinAttachments }},
	"max-attachments": intCondition{0, 10, func(f *types.Filter) **int64 { return &f.MaxAttachments }},
	"min-length":      intCondition{0, 4000, func(f *types.Filter) **int64 { return &f.MinLength }},
	"max-length":      intCondition{0, 4000, func(f *types.Filter) **int64 { return &f.MaxLength }},
	"matches":         regexCondition{func(f *types.Filter) **string { return &f.Matches }},
	"not-matches":     regexCondition{func(f *types.Filter) **string { return &f.NotMatches }},
	"older-than":      intCondition{0, math.MaxInt32, func(f *types.Filter) **int64 { return &f.OlderThan }},
	"newer-than":      intCondition{0, math.MaxInt32, func(f *types.Filter) **int64 { return &f.NewerThan }},

	"voter-has-all-of":      idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.VoterHasAllOf }},
	"voter-has-some-of":     idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.VoterHasSomeOf }},
	"voter-missing-all-of":  idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.VoterMissingAllOf }},
	"voter-missing-some-of": idsCondition{roleMention, func(f *types.Filter) *[]uint64 { return &f.VoterMissingSomeOf }},
}

func conditionNames() []string {
	names := make([]string, 0, len(conditions))
	for name := range conditions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// renderFilter describes every present condition of a filter.
func renderFilter(f *types.Filter) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Filter %d**", f.Position)
	if f.InstantPass {
		b.WriteString(" (instant pass)")
	}
	if f.InstantFail {
		b.WriteString(" (instant fail)")
	}
	b.WriteByte('\n')

	empty := true
	for _, name := range conditionNames() {
		if text, ok := conditions[name].render(f); ok {
			fmt.Fprintf(&b, "- %s: %s\n", name, text)
			empty = false
		}
	}
	if empty {
		b.WriteString("- no conditions, always passes\n")
	}

	return b.String()
}

func (h *Handler) registerFilters() {
	h.handle("/filters/create-group", h.createFilterGroup)
	h.handle("/filters/delete-group", h.deleteFilterGroup)
	h.handle("/filters/rename-group", h.renameFilterGroup)
	h.handle("/filters/view", h.viewFilterGroups)
	h.handle("/filters/add", h.addFilter)
	h.handle("/filters/remove", h.removeFilter)
	h.handle("/filters/set", h.setFilterCondition)
}

func (h *Handler) filterGroup(ctx context.Context, req *Request) (*types.FilterGroup, error) {
	name := req.Options.String(optFilter)

	group, err := h.db.Model().Filter().GetGroupByName(ctx, req.GuildID, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil, userErrorf("No filter group is named `%s`.", name)
	}
	return group, err
}

func (h *Handler) createFilterGroup(ctx context.Context, req *Request) error {
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}
	group, err := h.db.Model().Filter().CreateGroup(ctx, req.GuildID, name)
	if err != nil {
		return err
	}

	return req.Reply(ctx, "Created filter group `%s`. Add filters with `/filters add`.", group.Name)
}

func (h *Handler) deleteFilterGroup(ctx context.Context, req *Request) error {
	group, err := h.filterGroup(ctx, req)
	if err != nil {
		return err
	}

	if err := h.db.Model().Filter().DeleteGroup(ctx, group.ID); err != nil {
		return err
	}

	return req.Reply(ctx, "Deleted filter group `%s`.", group.Name)
}

func (h *Handler) renameFilterGroup(ctx context.Context, req *Request) error {
	group, err := h.filterGroup(ctx, req)
	if err != nil {
		return err
	}
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}

	if err := h.db.Model().Filter().RenameGroup(ctx, group.ID, name); err != nil {
		return err
	}

	return req.Reply(ctx, "Renamed filter group `%s` to `%s`.", group.Name, name)
}

func (h *Handler) viewFilterGroups(ctx context.Context, req *Request) error {
	if _, ok := req.Options.OptString(optFilter); ok {
		group, err := h.filterGroup(ctx, req)
		if err != nil {
			return err
		}

		pages := make([]discord.Embed, 0, len(group.Filters))
		for _, f := range group.Filters {
			pages = append(pages, discord.Embed{Title: "Filter group " + group.Name, Description: renderFilter(f)})
		}
		if len(pages) == 0 {
			return req.Reply(ctx, "Filter group `%s` has no filters, so it always passes.", group.Name)
		}

		return h.deps.Views.NewPaginator(pages, uint64(req.UserID), h.deps.ViewTimeout).Run(ctx, req.Show)
	}

	groups, err := h.db.Model().Filter().GetGroupsByGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return req.Reply(ctx, "This server has no filter groups.")
	}

	var b strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&b, "`%s`\n", g.Name)
	}

	return req.Embed(ctx, discord.Embed{Title: "Filter groups", Description: b.String()})
}

func (h *Handler) addFilter(ctx context.Context, req *Request) error {
	group, err := h.filterGroup(ctx, req)
	if err != nil {
		return err
	}
	if len(group.Filters) >= maxFilters {
		return userErrorf("A filter group can have at most %d filters.", maxFilters)
	}

	f := &types.Filter{FilterGroupID: group.ID}
	if pos, ok := req.Options.OptInt(optPosition); ok {
		f.Position = int64(pos)
	}
	f.InstantPass, _ = req.Options.OptBool("instant-pass")
	f.InstantFail, _ = req.Options.OptBool("instant-fail")

	if err := h.db.Model().Filter().InsertFilter(ctx, f); err != nil {
		return err
	}

	return req.Reply(ctx, "Added filter %d to `%s`. Set its conditions with `/filters set`.", f.Position, group.Name)
}

func (h *Handler) removeFilter(ctx context.Context, req *Request) error {
	group, err := h.filterGroup(ctx, req)
	if err != nil {
		return err
	}
	position := int64(req.Options.Int(optPosition))

	if err := h.db.Model().Filter().DeleteFilter(ctx, group.ID, position); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return userErrorf("Filter group `%s` has no filter %d.", group.Name, position)
		}
		return err
	}

	return req.Reply(ctx, "Removed filter %d from `%s`.", position, group.Name)
}

func (h *Handler) setFilterCondition(ctx context.Context, req *Request) error {
	group, err := h.filterGroup(ctx, req)
	if err != nil {
		return err
	}
	position := int64(req.Options.Int(optPosition))

	i := slices.IndexFunc(group.Filters, func(f *types.Filter) bool { return f.Position == position })
	if i < 0 {
		return userErrorf("Filter group `%s` has no filter %d.", group.Name, position)
	}
	f := group.Filters[i]

	name := req.Options.String(optCondition)
	cond, ok := conditions[name]
	if !ok {
		return userErrorf("%q is not a filter condition.", name)
	}

	parser, err := h.parser(ctx, req)
	if err != nil {
		return err
	}
	if err := cond.set(parser, f, strings.TrimSpace(req.Options.String(optValue))); err != nil {
		return err
	}

	if err := h.db.Model().Filter().UpdateFilter(ctx, f); err != nil {
		return err
	}

	return req.Embed(ctx, discord.Embed{Title: "Filter group " + group.Name, Description: renderFilter(f)})
}
