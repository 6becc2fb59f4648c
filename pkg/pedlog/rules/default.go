package rules

import (
	"regexp"

	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

// Order matters: several messages match more than one pattern (a critical
// hit also contains the plain damage text, the "experience in your X skill"
// form also matches the shorter skill form).
var systemRules = []Rule{
	{
		ID:      "damage_critical",
		Kind:    event.KindCombat,
		Pattern: regexp.MustCompile(`Critical hit - Additional damage! You inflicted (\d+\.\d+) points of damage`),
		Fields:  Fields{Critical: true},
	},
	{
		ID:      "damage",
		Kind:    event.KindCombat,
		Pattern: regexp.MustCompile(`You inflicted (\d+\.\d+) points of damage`),
	},
	{
		ID:      "heal",
		Kind:    event.KindHeal,
		Pattern: regexp.MustCompile(`You healed yourself (\d+\.\d+) points`),
	},
	{
		ID:      "deflect",
		Kind:    event.KindDeflect,
		Pattern: regexp.MustCompile(`Damage deflected!`),
	},
	{
		ID:      "evade",
		Kind:    event.KindEvade,
		Pattern: regexp.MustCompile(`You Evaded the attack`),
	},
	{
		ID:      "missed",
		Kind:    event.KindDodge,
		Pattern: regexp.MustCompile(`You missed`),
		Fields:  Fields{Miss: true},
	},
	{
		ID:      "target_dodged",
		Kind:    event.KindDodge,
		Pattern: regexp.MustCompile(`The target Dodged your attack`),
		Fields:  Fields{Miss: true},
	},
	{
		ID:      "target_evaded",
		Kind:    event.KindDodge,
		Pattern: regexp.MustCompile(`The target Evaded your attack`),
		Fields:  Fields{Miss: true},
	},
	{
		ID:      "target_jammed",
		Kind:    event.KindDodge,
		Pattern: regexp.MustCompile(`The target Jammed your attack`),
		Fields:  Fields{Miss: true},
	},
	{
		ID:      "damage_taken",
		Kind:    event.KindDamageTaken,
		Pattern: regexp.MustCompile(`You took (\d+\.\d+) points of damage`),
	},
	{
		ID:      "skill_experience",
		Kind:    event.KindSkill,
		Pattern: regexp.MustCompile(`You have gained (\d+\.\d+) experience in your ([a-zA-Z ]+) skill`),
	},
	{
		ID:      "skill_gained",
		Kind:    event.KindSkill,
		Pattern: regexp.MustCompile(`You have gained (\d+\.\d+) ([a-zA-Z ]+)`),
	},
	{
		ID:      "skill_improved",
		Kind:    event.KindSkill,
		Pattern: regexp.MustCompile(`Your ([a-zA-Z ]+) has improved by (\d+\.\d+)`),
	},
	{
		ID:      "enhancer_broke",
		Kind:    event.KindEnhancer,
		Pattern: regexp.MustCompile(`Your enhancer ([a-zA-Z0-9 ]+) on your .* broke\.`),
	},
	{
		ID:      "loot",
		Kind:    event.KindLoot,
		Pattern: regexp.MustCompile(`You received (.*) x \((\d+)\) Value: (\d+\.\d+) PED`),
	},
}

// Hall of Fame variants come first because the plain pattern is a prefix of
// them. Names may contain any letter, not only ASCII.
var globalsRules = []Rule{
	{
		ID:      "creature_hof",
		Kind:    event.KindGlobal,
		Pattern: regexp.MustCompile(`([\p{L}\p{N}_\s'()]+) killed a creature \(([\p{L}\p{N}_\s(),]+)\) with a value of (\d+) PED! A record has been added to the Hall of Fame!`),
		Fields:  Fields{HallOfFame: true},
	},
	{
		ID:      "creature",
		Kind:    event.KindGlobal,
		Pattern: regexp.MustCompile(`([\p{L}\p{N}_\s'()]+) killed a creature \(([\p{L}\p{N}_\s(),]+)\) with a value of (\d+) PED!`),
	},
	{
		ID:      "construction_hof",
		Kind:    event.KindGlobal,
		Pattern: regexp.MustCompile(`([\p{L}\p{N}_\s'()]+) constructed an item \(([\p{L}\p{N}_\s(),]+)\) worth (\d+) PED! A record has been added to the Hall of Fame!`),
		Fields:  Fields{HallOfFame: true},
	},
	{
		ID:      "construction",
		Kind:    event.KindGlobal,
		Pattern: regexp.MustCompile(`([\p{L}\p{N}_\s'()]+) constructed an item \(([\p{L}\p{N}_\s(),]+)\) worth (\d+) PED!`),
	},
	{
		ID:      "deposit_hof",
		Kind:    event.KindGlobal,
		Pattern: regexp.MustCompile(`([\p{L}\p{N}_\s'()]+) found a deposit \(([\p{L}\p{N}_\s()]+)\) with a value of (\d+) PED! A record has been added to the Hall of Fame!`),
		Fields:  Fields{HallOfFame: true},
	},
	{
		ID:      "deposit",
		Kind:    event.KindGlobal,
		Pattern: regexp.MustCompile(`([\p{L}\p{N}_\s'()]+) found a deposit \(([\p{L}\p{N}_\s()]+)\) with a value of (\d+) PED!`),
	},
	{
		ID:      "creature_location",
		Kind:    event.KindGlobal,
		Pattern: regexp.MustCompile(`([\p{L}\p{N}_\s'()]+) killed a creature \(([\p{L}\p{N}_\s(),]+)\) with a value of (\d+) PED at (.+)!`),
	},
}

var (
	defaultSystem  = MustTable("system", systemRules)
	defaultGlobals = MustTable("globals", globalsRules)
)

// System returns the built-in table for System channel messages.
func System() *Table { return defaultSystem }

// Globals returns the built-in table for Globals channel messages.
func Globals() *Table { return defaultGlobals }

// Default returns a classifier over the built-in tables with timestamps in
// local time.
func Default() *Classifier {
	return NewClassifier(defaultSystem, defaultGlobals, nil)
}
