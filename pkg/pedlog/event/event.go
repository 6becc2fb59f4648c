// Package event defines the typed events produced from Entropia Universe
// chat log lines.
//
// This package is separated from the main pedlog package to avoid import
// cycles between pkg/pedlog and pkg/pedlog/rules.
package event

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies what a chat line reported.
type Kind string

const (
	// KindHeal is a self heal.
	KindHeal Kind = "heal"

	// KindCombat is damage inflicted on a target.
	KindCombat Kind = "combat"

	// KindDodge is an attack that did not land (missed, dodged, evaded or jammed).
	KindDodge Kind = "dodge"

	// KindSkill is a skill or attribute gain.
	KindSkill Kind = "skill"

	// KindEnhancer is an enhancer breaking on an item.
	KindEnhancer Kind = "enhancer"

	// KindLoot is an item received from looting.
	KindLoot Kind = "loot"

	// KindGlobal is a broadcast on the Globals channel.
	KindGlobal Kind = "global"

	// KindDeflect is damage deflected by armor.
	KindDeflect Kind = "deflect"

	// KindEvade is an incoming attack evaded by the player.
	KindEvade Kind = "evade"

	// KindDamageTaken is damage received by the player.
	KindDamageTaken Kind = "damage_taken"
)

// allKinds is the canonical list of all event kinds.
var allKinds = []Kind{
	KindHeal, KindCombat, KindDodge, KindSkill, KindEnhancer,
	KindLoot, KindGlobal, KindDeflect, KindEvade, KindDamageTaken,
}

// KindNames returns a sorted list of all valid kind names.
func KindNames() []string {
	names := make([]string, len(allKinds))
	for i, k := range allKinds {
		names[i] = string(k)
	}
	sort.Strings(names)
	return names
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(allKinds))
	for _, k := range allKinds {
		m[string(k)] = k
	}
	return m
}()

// ParseKind converts a string to Kind if valid.
// It is case-insensitive and trims leading/trailing whitespace.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindByName[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Event is implemented by every event variant in this package.
// The set of variants is closed: Heal, Combat, Skill, EnhancerBreak,
// Loot, Global and Generic.
type Event interface {
	// Kind reports what the line was classified as.
	Kind() Kind

	// Time is the timestamp of the source line.
	Time() time.Time

	// Stamp sets the timestamp. It is called once by the classifier
	// right after the event is built.
	Stamp(t time.Time)

	sealed()
}

// Base carries the fields shared by all variants.
type Base struct {
	EventKind Kind      `json:"type"`
	At        time.Time `json:"time"`
}

// Kind implements Event.
func (b *Base) Kind() Kind { return b.EventKind }

// Time implements Event.
func (b *Base) Time() time.Time { return b.At }

// Stamp implements Event.
func (b *Base) Stamp(t time.Time) { b.At = t }

func (b *Base) sealed() {}

// Heal is a self heal.
type Heal struct {
	Base
	Amount decimal.Decimal `json:"amount"`
}

// Combat is an outgoing attack. Miss is set for attacks that did not land,
// in which case Amount is zero.
type Combat struct {
	Base
	Amount   decimal.Decimal `json:"amount"`
	Critical bool            `json:"critical"`
	Miss     bool            `json:"miss"`
}

// Skill is a skill gain or improvement.
type Skill struct {
	Base
	Amount decimal.Decimal `json:"amount"`
	Skill  string          `json:"skill"`
}

// EnhancerBreak reports an enhancer that broke.
type EnhancerBreak struct {
	Base
	Enhancer string `json:"enhancer"`
}

// Loot is an item received. UnitValue is set when Value was computed from a
// fixed per-unit value instead of the value printed in the log.
//
// A quantity that does not fit in an int makes the line malformed; it is
// reported as a *rules.BuildError instead of a Loot event.
type Loot struct {
	Base
	Item      string              `json:"item"`
	Quantity  int                 `json:"quantity"`
	Value     decimal.Decimal     `json:"value"`
	UnitValue decimal.NullDecimal `json:"unit_value"`
}

// Global is a broadcast from the Globals channel.
type Global struct {
	Base
	Player     string          `json:"player"`
	Subject    string          `json:"subject"`
	Value      decimal.Decimal `json:"value"`
	Location   string          `json:"location,omitempty"`
	HallOfFame bool            `json:"hall_of_fame"`
}

// Generic is a marker event with no payload (deflect, evade, damage taken).
type Generic struct {
	Base
}

var (
	_ Event = (*Heal)(nil)
	_ Event = (*Combat)(nil)
	_ Event = (*Skill)(nil)
	_ Event = (*EnhancerBreak)(nil)
	_ Event = (*Loot)(nil)
	_ Event = (*Global)(nil)
	_ Event = (*Generic)(nil)
)
