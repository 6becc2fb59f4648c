package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

// Fields are fixed values a rule applies on top of its captured groups.
type Fields struct {
	Critical   bool `yaml:"critical"`
	Miss       bool `yaml:"miss"`
	HallOfFame bool `yaml:"hof"`
}

// Builder constructs an event from the groups captured by a rule's pattern
// (without the whole-match group) and the rule's fixed fields.
type Builder func(kind event.Kind, groups []string, fields Fields) (event.Event, error)

// fieldError is returned by builders; Table.Match wraps it in a BuildError.
type fieldError struct {
	field string
	value string
	err   error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.field, e.value, e.err)
}

var errMissingGroup = errors.New("missing capture group")

// builderSpec pairs a builder with the number of capture groups it needs.
type builderSpec struct {
	build     Builder
	minGroups int
}

var builders = map[event.Kind]builderSpec{
	event.KindHeal:        {buildHeal, 1},
	event.KindCombat:      {buildCombat, 0},
	event.KindDodge:       {buildCombat, 0},
	event.KindSkill:       {buildSkill, 2},
	event.KindEnhancer:    {buildEnhancer, 1},
	event.KindLoot:        {buildLoot, 3},
	event.KindGlobal:      {buildGlobal, 3},
	event.KindDeflect:     {buildGeneric, 0},
	event.KindEvade:       {buildGeneric, 0},
	event.KindDamageTaken: {buildGeneric, 0},
}

// BuilderFor returns the builder registered for kind.
func BuilderFor(kind event.Kind) (Builder, bool) {
	spec, ok := builders[kind]
	return spec.build, ok
}

// fixedUnitValues lists items whose loot value is computed from the
// quantity instead of the value printed in the log.
var fixedUnitValues = map[string]decimal.Decimal{
	"Shrapnel": decimal.RequireFromString("0.0001"),
}

// UnitValue returns the fixed per-unit value for item, if it has one.
func UnitValue(item string) (decimal.Decimal, bool) {
	v, ok := fixedUnitValues[item]
	return v, ok
}

func group(groups []string, i int, field string) (string, error) {
	if i >= len(groups) {
		return "", &fieldError{field: field, err: errMissingGroup}
	}
	return groups[i], nil
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, &fieldError{field: field, value: s, err: err}
	}
	return d, nil
}

func buildHeal(kind event.Kind, groups []string, _ Fields) (event.Event, error) {
	raw, err := group(groups, 0, "amount")
	if err != nil {
		return nil, err
	}
	amount, err := parseDecimal(raw, "amount")
	if err != nil {
		return nil, err
	}
	return &event.Heal{Base: event.Base{EventKind: kind}, Amount: amount}, nil
}

// buildCombat accepts an optional amount; misses carry none.
func buildCombat(kind event.Kind, groups []string, f Fields) (event.Event, error) {
	ev := &event.Combat{
		Base:     event.Base{EventKind: kind},
		Critical: f.Critical,
		Miss:     f.Miss,
	}
	if len(groups) > 0 && groups[0] != "" {
		amount, err := parseDecimal(groups[0], "amount")
		if err != nil {
			return nil, err
		}
		ev.Amount = amount
	}
	return ev, nil
}

// buildSkill reads the amount from the first group and the skill name from
// the second. Some messages put the name first, so when the first group is
// not a number the two are swapped.
func buildSkill(kind event.Kind, groups []string, _ Fields) (event.Event, error) {
	first, err := group(groups, 0, "amount")
	if err != nil {
		return nil, err
	}
	second, err := group(groups, 1, "skill")
	if err != nil {
		return nil, err
	}

	name := second
	amount, err := decimal.NewFromString(first)
	if err != nil {
		name = first
		if amount, err = parseDecimal(second, "amount"); err != nil {
			return nil, err
		}
	}
	return &event.Skill{
		Base:   event.Base{EventKind: kind},
		Amount: amount,
		Skill:  strings.TrimSpace(name),
	}, nil
}

func buildEnhancer(kind event.Kind, groups []string, _ Fields) (event.Event, error) {
	name, err := group(groups, 0, "enhancer")
	if err != nil {
		return nil, err
	}
	return &event.EnhancerBreak{
		Base:     event.Base{EventKind: kind},
		Enhancer: strings.TrimSpace(name),
	}, nil
}

func buildLoot(kind event.Kind, groups []string, _ Fields) (event.Event, error) {
	item, err := group(groups, 0, "item")
	if err != nil {
		return nil, err
	}
	rawQty, err := group(groups, 1, "quantity")
	if err != nil {
		return nil, err
	}
	rawValue, err := group(groups, 2, "value")
	if err != nil {
		return nil, err
	}

	qty, err := strconv.Atoi(rawQty)
	if err != nil {
		return nil, &fieldError{field: "quantity", value: rawQty, err: err}
	}

	ev := &event.Loot{
		Base:     event.Base{EventKind: kind},
		Item:     item,
		Quantity: qty,
	}
	if unit, ok := UnitValue(item); ok {
		ev.Value = decimal.NewFromInt(int64(qty)).Mul(unit)
		ev.UnitValue = decimal.NewNullDecimal(unit)
		return ev, nil
	}
	if ev.Value, err = parseDecimal(rawValue, "value"); err != nil {
		return nil, err
	}
	return ev, nil
}

func buildGlobal(kind event.Kind, groups []string, f Fields) (event.Event, error) {
	player, err := group(groups, 0, "player")
	if err != nil {
		return nil, err
	}
	subject, err := group(groups, 1, "subject")
	if err != nil {
		return nil, err
	}
	rawValue, err := group(groups, 2, "value")
	if err != nil {
		return nil, err
	}
	value, err := parseDecimal(rawValue, "value")
	if err != nil {
		return nil, err
	}

	ev := &event.Global{
		Base:       event.Base{EventKind: kind},
		Player:     strings.TrimSpace(player),
		Subject:    strings.TrimSpace(subject),
		Value:      value,
		HallOfFame: f.HallOfFame,
	}
	if len(groups) > 3 {
		ev.Location = strings.TrimSpace(groups[3])
	}
	return ev, nil
}

func buildGeneric(kind event.Kind, _ []string, _ Fields) (event.Event, error) {
	return &event.Generic{Base: event.Base{EventKind: kind}}, nil
}
