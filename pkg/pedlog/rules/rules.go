// Package rules classifies parsed chat lines into typed events using ordered
// tables of regular expression rules.
//
// A Table is evaluated in declaration order and the first rule whose pattern
// matches the message wins. Two tables are used by default: one for the
// System channel (combat, skills, loot) and one for the Globals channel
// (broadcasts). Tables are read-only once built and safe for concurrent use.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pedlog/pedlog-go/internal/parser"
	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

// Channel names that select a table.
const (
	ChannelSystem  = "System"
	ChannelGlobals = "Globals"
)

// Rule pairs a pattern with the event it produces.
type Rule struct {
	// ID identifies the rule in logs and results. Unique within a table.
	ID string

	// Kind is the kind of the produced event.
	Kind event.Kind

	// Pattern is searched for anywhere in the message.
	Pattern *regexp.Regexp

	// Fields are applied in addition to the captured groups.
	Fields Fields

	// Build constructs the event. When nil, the builder registered for
	// Kind is used.
	Build Builder
}

// Outcome describes what happened to a line during classification.
type Outcome int

const (
	// OutcomeIgnored means the line was not a chat line or came from a
	// channel without a table.
	OutcomeIgnored Outcome = iota

	// OutcomeUnmatched means no rule in the selected table matched.
	OutcomeUnmatched

	// OutcomeMatched means a rule matched and Result.Event is set.
	OutcomeMatched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeMatched:
		return "matched"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the result of classifying one line.
type Result struct {
	Outcome Outcome
	Event   event.Event // set when Outcome is OutcomeMatched
	RuleID  string      // ID of the matching rule, if any
}

// Table is an ordered, immutable list of rules.
type Table struct {
	name  string
	rules []Rule
}

// NewTable validates rules and returns a table that evaluates them in the
// given order. Rules without a Build function get the builder registered for
// their kind. Returns a *RuleError describing the first invalid rule.
func NewTable(name string, rules []Rule) (*Table, error) {
	compiled := make([]Rule, 0, len(rules))
	seen := make(map[string]int, len(rules))

	for i, r := range rules {
		if r.ID == "" {
			return nil, &RuleError{Table: name, Index: i, Field: "id", Message: "id is required"}
		}
		if prev, ok := seen[r.ID]; ok {
			return nil, &RuleError{
				Table: name, Index: i, ID: r.ID, Field: "id",
				Message: fmt.Sprintf("duplicate id (previously defined at rule[%d])", prev),
			}
		}
		seen[r.ID] = i

		if r.Pattern == nil {
			return nil, &RuleError{Table: name, Index: i, ID: r.ID, Field: "regex", Message: "pattern is required"}
		}

		spec, known := builders[r.Kind]
		if r.Build == nil {
			if !known {
				return nil, &RuleError{
					Table: name, Index: i, ID: r.ID, Field: "kind",
					Message: fmt.Sprintf("unknown kind %q", r.Kind),
				}
			}
			r.Build = spec.build
		}
		if known && r.Pattern.NumSubexp() < spec.minGroups {
			return nil, &RuleError{
				Table: name, Index: i, ID: r.ID, Field: "regex",
				Message: fmt.Sprintf("%s rules need at least %d capture groups, pattern has %d",
					r.Kind, spec.minGroups, r.Pattern.NumSubexp()),
			}
		}

		compiled = append(compiled, r)
	}

	return &Table{name: name, rules: compiled}, nil
}

// MustTable is like NewTable but panics on error.
// It is intended for tables declared in code.
func MustTable(name string, rules []Rule) *Table {
	t, err := NewTable(name, rules)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.rules) }

// Rules returns a copy of the rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Match returns the event built by the first rule whose pattern matches
// message, together with that rule's ID. It returns a nil event when no rule
// matches. The event's time is not set.
func (t *Table) Match(message string) (event.Event, string, error) {
	for _, r := range t.rules {
		m := r.Pattern.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		ev, err := r.Build(r.Kind, m[1:], r.Fields)
		if err != nil {
			return nil, r.ID, wrapBuildError(r.ID, err)
		}
		return ev, r.ID, nil
	}
	return nil, "", nil
}

// Classify matches the line's message against the table and stamps the
// resulting event with the line's timestamp, interpreted in loc (nil means
// time.Local). The line's channel is not checked; see Classifier.
func (t *Table) Classify(line parser.Line, loc *time.Location) (Result, error) {
	if line.Empty() {
		return Result{Outcome: OutcomeIgnored}, nil
	}

	ev, id, err := t.Match(line.Message)
	if err != nil {
		return Result{Outcome: OutcomeMatched, RuleID: id}, err
	}
	if ev == nil {
		return Result{Outcome: OutcomeUnmatched}, nil
	}

	ts, err := parser.ParseTime(line.Timestamp, loc)
	if err != nil {
		return Result{Outcome: OutcomeMatched, RuleID: id},
			&BuildError{RuleID: id, Field: "time", Value: line.Timestamp, Err: err}
	}
	ev.Stamp(ts)

	return Result{Outcome: OutcomeMatched, Event: ev, RuleID: id}, nil
}

func wrapBuildError(id string, err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return &BuildError{RuleID: id, Field: fe.field, Value: fe.value, Err: fe.err}
	}
	return &BuildError{RuleID: id, Field: "event", Err: err}
}

// Classifier selects a table by channel and classifies lines with it.
// It is safe for concurrent use.
type Classifier struct {
	tables map[string]*Table
	loc    *time.Location
}

// NewClassifier returns a classifier using system for the System channel and
// globals for the Globals channel. A nil table disables its channel.
// Timestamps are interpreted in loc; nil means time.Local.
func NewClassifier(system, globals *Table, loc *time.Location) *Classifier {
	tables := make(map[string]*Table, 2)
	if system != nil {
		tables[ChannelSystem] = system
	}
	if globals != nil {
		tables[ChannelGlobals] = globals
	}
	return &Classifier{tables: tables, loc: loc}
}

// Table returns the table used for channel.
func (c *Classifier) Table(channel string) (*Table, bool) {
	t, ok := c.tables[channel]
	return t, ok
}

// Classify classifies a parsed line. Lines without a channel, or from a
// channel without a table, are ignored.
func (c *Classifier) Classify(line parser.Line) (Result, error) {
	if line.Empty() {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	t, ok := c.tables[line.Channel]
	if !ok {
		return Result{Outcome: OutcomeIgnored}, nil
	}
	return t.Classify(line, c.loc)
}
