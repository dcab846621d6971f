package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/uptrace/bun/dialect/pgdialect"
)

var (
	ErrUnknownSetting   = errors.New("unknown setting")
	ErrSettingValueType = errors.New("setting value has the wrong type")
	ErrInvalidOverride  = errors.New("invalid override value")
)

// SettingKind describes how a setting value is typed and rendered.
type SettingKind int

const (
	SettingKindBool SettingKind = iota
	SettingKindInt
	SettingKindFloat
	SettingKindString
	SettingKindOptString
	SettingKindEmoji
	SettingKindEmojiList
	SettingKindColor
	SettingKindOnDelete
	SettingKindGoToMessage
	SettingKindOptInt
	SettingKindIntList
)

// SettingCategory groups settings for the edit commands.
type SettingCategory int

const (
	SettingCategoryStyle SettingCategory = iota
	SettingCategoryRequirements
	SettingCategoryBehavior
)

// OverrideField is either unset, meaning the base value applies, or an overridden value.
type OverrideField[T any] struct {
	Value T
	Set   bool
}

// Overridden returns a set OverrideField holding v.
func Overridden[T any](v T) OverrideField[T] {
	return OverrideField[T]{Value: v, Set: true}
}

// Or returns the overridden value if set, otherwise base.
func (f OverrideField[T]) Or(base T) T {
	if f.Set {
		return f.Value
	}
	return base
}

// SettingField describes a single starboard setting. The same table drives
// defaults, override merging, SQL updates and command options.
type SettingField interface {
	Name() string
	Kind() SettingKind
	Category() SettingCategory
	// Premium reports whether changing the setting requires premium.
	Premium() bool
	// ApplyDefault writes the default value into s.
	ApplyDefault(s *StarboardSettings)
	// Get returns the current value in s.
	Get(s *StarboardSettings) any
	// Set assigns v, which must have the field's Go type.
	Set(s *StarboardSettings, v any) error
	// Merge applies the override for this field from raw, if present.
	Merge(s *StarboardSettings, raw map[string]json.RawMessage) error
	// Encode returns the JSON override value for the current value in s.
	Encode(s *StarboardSettings) (json.RawMessage, error)
	// SQLValue returns the value to bind in an UPDATE statement.
	SQLValue(s *StarboardSettings) any
}

type field[T any] struct {
	name     string
	kind     SettingKind
	category SettingCategory
	premium  bool
	def      func() T
	ptr      func(*StarboardSettings) *T
}

func (f field[T]) Name() string              { return f.name }
func (f field[T]) Kind() SettingKind         { return f.kind }
func (f field[T]) Category() SettingCategory { return f.category }
func (f field[T]) Premium() bool             { return f.premium }

func (f field[T]) ApplyDefault(s *StarboardSettings) {
	*f.ptr(s) = f.def()
}

func (f field[T]) Get(s *StarboardSettings) any {
	return *f.ptr(s)
}

func (f field[T]) Set(s *StarboardSettings, v any) error {
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: %s expects %T, got %T", ErrSettingValueType, f.name, tv, v)
	}
	*f.ptr(s) = tv
	return nil
}

// override decodes the override value for this field, if any.
func (f field[T]) override(raw map[string]json.RawMessage) (OverrideField[T], error) {
	data, ok := raw[f.name]
	if !ok {
		return OverrideField[T]{}, nil
	}

	var v T
	if err := sonic.Unmarshal(data, &v); err != nil {
		return OverrideField[T]{}, fmt.Errorf("%w: %s: %w", ErrInvalidOverride, f.name, err)
	}

	return Overridden(v), nil
}

func (f field[T]) Merge(s *StarboardSettings, raw map[string]json.RawMessage) error {
	ov, err := f.override(raw)
	if err != nil {
		return err
	}

	p := f.ptr(s)
	*p = ov.Or(*p)

	return nil
}

func (f field[T]) Encode(s *StarboardSettings) (json.RawMessage, error) {
	data, err := sonic.Marshal(*f.ptr(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode setting %s: %w", f.name, err)
	}
	return data, nil
}

func (f field[T]) SQLValue(s *StarboardSettings) any {
	v := *f.ptr(s)
	switch f.kind {
	case SettingKindEmojiList, SettingKindIntList:
		return pgdialect.Array(v)
	default:
		return v
	}
}

func constant[T any](v T) func() T {
	return func() T { return v }
}

// settingFields is the descriptor table for every starboard setting.
var settingFields = []SettingField{
	// Style
	field[string]{
		name: "display_emoji", kind: SettingKindEmoji, category: SettingCategoryStyle,
		def: constant("⭐"), ptr: func(s *StarboardSettings) *string { return &s.DisplayEmoji },
	},
	field[bool]{
		name: "ping_author", kind: SettingKindBool, category: SettingCategoryStyle,
		def: constant(false), ptr: func(s *StarboardSettings) *bool { return &s.PingAuthor },
	},
	field[bool]{
		name: "use_server_profile", kind: SettingKindBool, category: SettingCategoryStyle,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.UseServerProfile },
	},
	field[bool]{
		name: "extra_embeds", kind: SettingKindBool, category: SettingCategoryStyle,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.ExtraEmbeds },
	},
	field[bool]{
		name: "use_webhook", kind: SettingKindBool, category: SettingCategoryStyle,
		def: constant(false), ptr: func(s *StarboardSettings) *bool { return &s.UseWebhook },
	},
	field[int64]{
		name: "color", kind: SettingKindColor, category: SettingCategoryStyle,
		def: constant(int64(0xFFE19C)), ptr: func(s *StarboardSettings) *int64 { return &s.Color },
	},
	field[enum.GoToMessage]{
		name: "go_to_message", kind: SettingKindGoToMessage, category: SettingCategoryStyle,
		def: constant(enum.GoToMessageLink), ptr: func(s *StarboardSettings) *enum.GoToMessage { return &s.GoToMessage },
	},
	field[bool]{
		name: "attachments_list", kind: SettingKindBool, category: SettingCategoryStyle,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.AttachmentsList },
	},
	field[bool]{
		name: "replied_to", kind: SettingKindBool, category: SettingCategoryStyle,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.RepliedTo },
	},

	// Requirements
	field[int64]{
		name: "required", kind: SettingKindInt, category: SettingCategoryRequirements,
		def: constant(int64(3)), ptr: func(s *StarboardSettings) *int64 { return &s.Required },
	},
	field[int64]{
		name: "required_remove", kind: SettingKindInt, category: SettingCategoryRequirements,
		def: constant(int64(0)), ptr: func(s *StarboardSettings) *int64 { return &s.RequiredRemove },
	},
	field[[]string]{
		name: "upvote_emojis", kind: SettingKindEmojiList, category: SettingCategoryRequirements,
		def: func() []string { return []string{"⭐"} }, ptr: func(s *StarboardSettings) *[]string { return &s.UpvoteEmojis },
	},
	field[[]string]{
		name: "downvote_emojis", kind: SettingKindEmojiList, category: SettingCategoryRequirements,
		def: func() []string { return []string{} }, ptr: func(s *StarboardSettings) *[]string { return &s.DownvoteEmojis },
	},
	field[bool]{
		name: "self_vote", kind: SettingKindBool, category: SettingCategoryRequirements,
		def: constant(false), ptr: func(s *StarboardSettings) *bool { return &s.SelfVote },
	},
	field[bool]{
		name: "allow_bots", kind: SettingKindBool, category: SettingCategoryRequirements,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.AllowBots },
	},
	field[bool]{
		name: "require_image", kind: SettingKindBool, category: SettingCategoryRequirements,
		def: constant(false), ptr: func(s *StarboardSettings) *bool { return &s.RequireImage },
	},
	field[int64]{
		name: "older_than", kind: SettingKindInt, category: SettingCategoryRequirements,
		def: constant(int64(0)), ptr: func(s *StarboardSettings) *int64 { return &s.OlderThan },
	},
	field[int64]{
		name: "newer_than", kind: SettingKindInt, category: SettingCategoryRequirements,
		def: constant(int64(0)), ptr: func(s *StarboardSettings) *int64 { return &s.NewerThan },
	},
	field[*string]{
		name: "matches", kind: SettingKindOptString, category: SettingCategoryRequirements, premium: true,
		def: constant[*string](nil), ptr: func(s *StarboardSettings) **string { return &s.Matches },
	},
	field[*string]{
		name: "not_matches", kind: SettingKindOptString, category: SettingCategoryRequirements, premium: true,
		def: constant[*string](nil), ptr: func(s *StarboardSettings) **string { return &s.NotMatches },
	},
	field[[]int64]{
		name: "filter_groups", kind: SettingKindIntList, category: SettingCategoryRequirements,
		def: func() []int64 { return []int64{} }, ptr: func(s *StarboardSettings) *[]int64 { return &s.FilterGroups },
	},

	// Behavior
	field[bool]{
		name: "enabled", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.Enabled },
	},
	field[bool]{
		name: "autoreact_upvote", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.AutoreactUpvote },
	},
	field[bool]{
		name: "autoreact_downvote", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.AutoreactDownvote },
	},
	field[bool]{
		name: "remove_invalid_reactions", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.RemoveInvalidReactions },
	},
	field[bool]{
		name: "link_deletes", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(false), ptr: func(s *StarboardSettings) *bool { return &s.LinkDeletes },
	},
	field[bool]{
		name: "link_edits", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(true), ptr: func(s *StarboardSettings) *bool { return &s.LinkEdits },
	},
	field[enum.OnDelete]{
		name: "on_delete", kind: SettingKindOnDelete, category: SettingCategoryBehavior,
		def: constant(enum.OnDeleteIgnore), ptr: func(s *StarboardSettings) *enum.OnDelete { return &s.OnDelete },
	},
	field[bool]{
		name: "private", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(false), ptr: func(s *StarboardSettings) *bool { return &s.Private },
	},
	field[float32]{
		name: "xp_multiplier", kind: SettingKindFloat, category: SettingCategoryBehavior,
		def: constant(float32(1)), ptr: func(s *StarboardSettings) *float32 { return &s.XPMultiplier },
	},
	field[bool]{
		name: "cooldown_enabled", kind: SettingKindBool, category: SettingCategoryBehavior,
		def: constant(false), ptr: func(s *StarboardSettings) *bool { return &s.CooldownEnabled },
	},
	field[int64]{
		name: "cooldown_count", kind: SettingKindInt, category: SettingCategoryBehavior,
		def: constant(int64(5)), ptr: func(s *StarboardSettings) *int64 { return &s.CooldownCount },
	},
	field[int64]{
		name: "cooldown_period", kind: SettingKindInt, category: SettingCategoryBehavior,
		def: constant(int64(5)), ptr: func(s *StarboardSettings) *int64 { return &s.CooldownPeriod },
	},
	field[*int64]{
		name: "exclusive_group", kind: SettingKindOptInt, category: SettingCategoryBehavior,
		def: constant[*int64](nil), ptr: func(s *StarboardSettings) **int64 { return &s.ExclusiveGroup },
	},
	field[int64]{
		name: "exclusive_group_priority", kind: SettingKindInt, category: SettingCategoryBehavior,
		def: constant(int64(0)), ptr: func(s *StarboardSettings) *int64 { return &s.ExclusiveGroupPriority },
	},
}

var settingsByName = func() map[string]SettingField {
	m := make(map[string]SettingField, len(settingFields))
	for _, f := range settingFields {
		m[f.Name()] = f
	}
	return m
}()

// SettingFields returns the descriptor table in display order.
func SettingFields() []SettingField {
	return settingFields
}

// SettingByName looks up a setting descriptor.
func SettingByName(name string) (SettingField, error) {
	f, ok := settingsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	return f, nil
}

// DefaultSettings returns a settings bundle holding every default value.
func DefaultSettings() StarboardSettings {
	var s StarboardSettings
	for _, f := range settingFields {
		f.ApplyDefault(&s)
	}
	return s
}

// MergeOverrides returns base with every override in raw applied on top.
// Slices in base are never modified in place.
func MergeOverrides(base StarboardSettings, raw map[string]json.RawMessage) (StarboardSettings, error) {
	if len(raw) == 0 {
		return base, nil
	}

	merged := base
	for _, f := range settingFields {
		if err := f.Merge(&merged, raw); err != nil {
			return base, err
		}
	}

	return merged, nil
}
