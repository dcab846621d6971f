// Package filter evaluates filter groups and message requirements.
package filter

import (
	"cmp"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"go.uber.org/zap"
)

// Message is what filters know about a message and its author.
type Message struct {
	AuthorID    snowflake.ID
	AuthorRoles []snowflake.ID
	AuthorIsBot bool
	ChannelID   snowflake.ID
	// Ancestors are the parent channels of ChannelID, nearest first.
	Ancestors   []snowflake.ID
	Content     string
	Attachments int
	HasImage    bool
	CreatedAt   time.Time
}

// Voter is what filters know about the member casting a vote.
type Voter struct {
	UserID snowflake.ID
	Roles  []snowflake.ID
}

// Context is the input of one evaluation. Voter is nil outside of voting,
// in which case voter conditions are skipped.
type Context struct {
	Message *Message
	Voter   *Voter
	Now     time.Time
}

// Outcome is the result of evaluating filter groups.
type Outcome int

const (
	// Pass means every group passed.
	Pass Outcome = iota
	// Fail means a group had no passing filter.
	Fail
	// Abort means an instant-fail filter failed.
	Abort
)

// Result reports the outcome and the group that decided it.
type Result struct {
	Outcome Outcome
	Group   string
}

// Passed reports whether every group passed.
func (r Result) Passed() bool {
	return r.Outcome == Pass
}

// Engine evaluates filters with a shared regex cache.
type Engine struct {
	regex  *RegexCache
	logger *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(regex *RegexCache, logger *zap.Logger) *Engine {
	return &Engine{
		regex:  regex,
		logger: logger.Named("filter"),
	}
}

// Regex returns the engine's regex cache.
func (e *Engine) Regex() *RegexCache {
	return e.regex
}

// Check evaluates groups in order. The set passes only if every group passes.
func (e *Engine) Check(groups []*types.FilterGroup, ctx *Context) Result {
	for _, group := range groups {
		switch e.checkGroup(group, ctx) {
		case Pass:
			continue
		case Fail:
			return Result{Outcome: Fail, Group: group.Name}
		case Abort:
			return Result{Outcome: Abort, Group: group.Name}
		}
	}

	return Result{Outcome: Pass}
}

// checkGroup passes if any filter passes. A passing instant-pass filter
// passes the group at once, a failing instant-fail filter aborts it.
// An empty group passes.
func (e *Engine) checkGroup(group *types.FilterGroup, ctx *Context) Outcome {
	if len(group.Filters) == 0 {
		return Pass
	}

	filters := slices.Clone(group.Filters)
	slices.SortStableFunc(filters, func(a, b *types.Filter) int {
		return cmp.Compare(a.Position, b.Position)
	})

	anyPassed := false

	for _, f := range filters {
		passed := e.checkFilter(f, ctx)

		switch {
		case passed && f.InstantPass:
			return Pass
		case !passed && f.InstantFail:
			return Abort
		case passed:
			anyPassed = true
		}
	}

	if anyPassed {
		return Pass
	}

	return Fail
}

// checkFilter passes if every present condition passes.
func (e *Engine) checkFilter(f *types.Filter, ctx *Context) bool {
	m := ctx.Message

	// Author
	if f.UserIsBot != nil && *f.UserIsBot != m.AuthorIsBot {
		return false
	}
	if !checkRoles(m.AuthorRoles, f.UserHasAllOf, f.UserHasSomeOf, f.UserMissingAllOf, f.UserMissingSomeOf) {
		return false
	}

	// Channel
	if len(f.InChannel) > 0 && !containsID(f.InChannel, m.ChannelID) {
		return false
	}
	if len(f.NotInChannel) > 0 && containsID(f.NotInChannel, m.ChannelID) {
		return false
	}
	if len(f.InChannelOrSubChannels) > 0 && !inTree(f.InChannelOrSubChannels, m) {
		return false
	}
	if len(f.NotInChannelOrSubChannels) > 0 && inTree(f.NotInChannelOrSubChannels, m) {
		return false
	}

	// Message
	if f.MinAttachments != nil && int64(m.Attachments) < *f.MinAttachments {
		return false
	}
	if f.MaxAttachments != nil && int64(m.Attachments) > *f.MaxAttachments {
		return false
	}

	length := int64(utf8.RuneCountInString(m.Content))
	if f.MinLength != nil && length < *f.MinLength {
		return false
	}
	if f.MaxLength != nil && length > *f.MaxLength {
		return false
	}

	if f.Matches != nil && !e.match(*f.Matches, m.Content, false) {
		return false
	}
	if f.NotMatches != nil && !e.match(*f.NotMatches, m.Content, true) {
		return false
	}

	age := ctx.Now.Sub(m.CreatedAt)
	if f.OlderThan != nil && age < time.Duration(*f.OlderThan)*time.Second {
		return false
	}
	if f.NewerThan != nil && age > time.Duration(*f.NewerThan)*time.Second {
		return false
	}

	// Voter
	if ctx.Voter != nil &&
		!checkRoles(ctx.Voter.Roles, f.VoterHasAllOf, f.VoterHasSomeOf, f.VoterMissingAllOf, f.VoterMissingSomeOf) {
		return false
	}

	return true
}

// match reports whether content matches pattern, or does not match it when
// negate is set. Broken or timed out patterns never pass.
func (e *Engine) match(pattern, content string, negate bool) bool {
	matched, err := e.regex.Match(pattern, content)
	if err != nil {
		e.logger.Debug("Regex evaluation failed",
			zap.String("pattern", pattern),
			zap.Error(err))
		return false
	}

	return matched != negate
}

// checkRoles applies the four role list conditions to held roles.
func checkRoles(held []snowflake.ID, hasAll, hasSome, missingAll, missingSome []uint64) bool {
	holds := func(id uint64) bool {
		return slices.Contains(held, snowflake.ID(id))
	}

	for _, id := range hasAll {
		if !holds(id) {
			return false
		}
	}
	if len(hasSome) > 0 && !slices.ContainsFunc(hasSome, holds) {
		return false
	}
	for _, id := range missingAll {
		if holds(id) {
			return false
		}
	}
	if len(missingSome) > 0 && !slices.ContainsFunc(missingSome, func(id uint64) bool { return !holds(id) }) {
		return false
	}

	return true
}

func containsID(ids []uint64, id snowflake.ID) bool {
	return slices.Contains(ids, uint64(id))
}

// inTree reports whether the message channel or any of its ancestors is listed.
func inTree(ids []uint64, m *Message) bool {
	if containsID(ids, m.ChannelID) {
		return true
	}

	return slices.ContainsFunc(m.Ancestors, func(id snowflake.ID) bool {
		return containsID(ids, id)
	})
}
