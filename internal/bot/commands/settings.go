package commands

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/robalyx/starboard/internal/bot/validation"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/starboard/emoji"
)

// cooldownSetting edits cooldown_count and cooldown_period together.
const cooldownSetting = "cooldown"

// noneInputs clear optional settings.
var noneInputs = []string{"none", "null", "off", "clear", "-"}

// intRange bounds an integer setting.
type intRange struct {
	lo, hi int64
}

var intRanges = map[string]intRange{
	"required":                 {lo: -1, hi: 500},
	"required_remove":          {lo: -500, hi: 490},
	"older_than":               {lo: 0, hi: math.MaxInt32},
	"newer_than":               {lo: 0, hi: math.MaxInt32},
	"cooldown_count":           {lo: 1, hi: 1000},
	"cooldown_period":          {lo: 1, hi: 86400},
	"exclusive_group_priority": {lo: -50, hi: 50},
}

// settingParser turns administrator input into typed setting values.
type settingParser struct {
	premium  bool
	maxRegex int
	// exclusiveGroup resolves an exclusive group name to its id.
	exclusiveGroup func(ctx context.Context, name string) (int64, error)
	// filterGroup resolves a filter group name to its id.
	filterGroup func(ctx context.Context, name string) (int64, error)
}

// Parse reads input for the named setting. The result maps every affected
// setting name to a value of that setting's Go type.
func (p *settingParser) Parse(ctx context.Context, name, input string) (map[string]any, error) {
	input = strings.TrimSpace(input)

	if name == cooldownSetting {
		count, period, err := validation.Cooldown(input)
		if err != nil {
			return nil, err
		}
		return map[string]any{"cooldown_count": count, "cooldown_period": period}, nil
	}

	f, err := types.SettingByName(name)
	if err != nil {
		return nil, userErrorf("%q is not a setting.", name)
	}

	if f.Premium() && !p.premium {
		return nil, userErrorf("`%s` is a premium setting.", name)
	}

	v, err := p.value(ctx, f, input)
	if err != nil {
		return nil, err
	}

	return map[string]any{name: v}, nil
}

func (p *settingParser) value(ctx context.Context, f types.SettingField, input string) (any, error) {
	switch f.Kind() {
	case types.SettingKindBool:
		return validation.Bool(input)

	case types.SettingKindInt:
		r, ok := intRanges[f.Name()]
		if !ok {
			r = intRange{lo: math.MinInt32, hi: math.MaxInt32}
		}
		return validation.Int(input, r.lo, r.hi)

	case types.SettingKindFloat:
		v, err := validation.Float(input, 0, 10)
		return float32(v), err

	case types.SettingKindString:
		return input, nil

	case types.SettingKindOptString:
		if isNone(input) {
			return (*string)(nil), nil
		}
		if err := validation.Regex(input, p.premium, p.maxRegex); err != nil {
			return nil, err
		}
		return &input, nil

	case types.SettingKindEmoji:
		e, ok := emoji.Parse(input)
		if !ok {
			return nil, userErrorf("%q is not an emoji.", input)
		}
		return e, nil

	case types.SettingKindEmojiList:
		if isNone(input) {
			return []string{}, nil
		}
		emojis, bad := emoji.ParseList(input)
		if bad != "" {
			return nil, userErrorf("%q is not an emoji.", bad)
		}
		return emojis, nil

	case types.SettingKindColor:
		return validation.Color(input)

	case types.SettingKindOnDelete:
		choice, err := validation.Choice(input, enum.OnDeleteStrings())
		if err != nil {
			return nil, err
		}
		return enum.OnDeleteString(choice)

	case types.SettingKindGoToMessage:
		choice, err := validation.Choice(input, enum.GoToMessageStrings())
		if err != nil {
			return nil, err
		}
		return enum.GoToMessageString(choice)

	case types.SettingKindOptInt:
		if isNone(input) {
			return (*int64)(nil), nil
		}
		id, err := p.exclusiveGroup(ctx, input)
		if err != nil {
			return nil, err
		}
		return &id, nil

	case types.SettingKindIntList:
		ids := []int64{}
		if isNone(input) {
			return ids, nil
		}
		for _, name := range splitList(input) {
			id, err := p.filterGroup(ctx, name)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	return nil, fmt.Errorf("%w: %s", types.ErrUnknownSetting, f.Name())
}

// applySettings sets every value of a parsed patch and checks the
// cross-field constraints on the result.
func applySettings(s *types.StarboardSettings, patch map[string]any) ([]string, error) {
	names := make([]string, 0, len(patch))

	for name, v := range patch {
		f, err := types.SettingByName(name)
		if err != nil {
			return nil, err
		}
		if err := f.Set(s, v); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if err := validation.Required(s.Required, s.RequiredRemove); err != nil {
		return nil, err
	}

	return names, nil
}

// settingNames lists every editable setting name, including the cooldown shorthand.
func settingNames() []string {
	fields := types.SettingFields()
	names := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		names = append(names, f.Name())
	}
	return append(names, cooldownSetting)
}

// formatSetting renders a setting value for display.
func formatSetting(f types.SettingField, v any) string {
	switch f.Kind() {
	case types.SettingKindColor:
		return fmt.Sprintf("#%06X", v)
	case types.SettingKindEmoji:
		return emoji.Display(v.(string), false)
	case types.SettingKindEmojiList:
		list := v.([]string)
		if len(list) == 0 {
			return "none"
		}
		parts := make([]string, len(list))
		for i, e := range list {
			parts[i] = emoji.Display(e, false)
		}
		return strings.Join(parts, " ")
	case types.SettingKindOptString:
		if s := v.(*string); s != nil {
			return "`" + *s + "`"
		}
		return "none"
	case types.SettingKindOptInt:
		if id := v.(*int64); id != nil {
			return strconv.FormatInt(*id, 10)
		}
		return "none"
	case types.SettingKindIntList:
		ids := v.([]int64)
		if len(ids) == 0 {
			return "none"
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return strings.Join(parts, ", ")
	}

	return fmt.Sprint(v)
}

func isNone(input string) bool {
	input = strings.ToLower(strings.TrimSpace(input))
	for _, n := range noneInputs {
		if input == n {
			return true
		}
	}
	return input == ""
}

// splitList splits comma or space separated input.
func splitList(input string) []string {
	return strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	})
}
