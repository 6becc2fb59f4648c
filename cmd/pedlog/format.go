package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

// validFormats lists all valid output formats.
var validFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// formatNames returns the valid formats, sorted.
func formatNames() []string {
	names := make([]string, 0, len(validFormats))
	for f := range validFormats {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// markerStyles color the one-character markers of pretty output.
type markerStyles struct {
	hit, critical, miss lipgloss.Style
	heal, skill, broke  lipgloss.Style
	loot, global, other lipgloss.Style
}

// newMarkerStyles binds the styles to out. Writers that are not terminals get
// no escape sequences.
func newMarkerStyles(out io.Writer) markerStyles {
	r := lipgloss.NewRenderer(out)
	fg := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}
	return markerStyles{
		hit:      fg("7"),
		critical: fg("9").Bold(true),
		miss:     fg("8"),
		heal:     fg("10"),
		skill:    fg("14"),
		broke:    fg("13"),
		loot:     fg("11"),
		global:   fg("11").Bold(true),
		other:    fg("8"),
	}
}

// printer writes events in one output format.
type printer struct {
	format string
	out    io.Writer
	styles markerStyles
}

func newPrinter(format string, out io.Writer) (*printer, error) {
	if !validFormats[format] {
		return nil, fmt.Errorf("unknown format: %s (valid: %s)", format, strings.Join(formatNames(), ", "))
	}
	p := &printer{format: format, out: out}
	if format == "pretty" {
		p.styles = newMarkerStyles(out)
	}
	return p, nil
}

// print writes ev in the printer's format.
func (p *printer) print(ev event.Event) error {
	if p.format == "jsonl" {
		return outputJSON(ev, p.out)
	}
	return p.pretty(ev)
}

// outputJSON writes an event as one JSON object per line.
func outputJSON(ev event.Event, out io.Writer) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// pretty writes an event in human-readable format.
func (p *printer) pretty(ev event.Event) error {
	ts := ev.Time().Format("15:04:05")
	st := p.styles
	line := func(marker lipgloss.Style, sym, format string, args ...any) error {
		_, err := fmt.Fprintf(p.out, "[%s] %s "+format+"\n", append([]any{ts, marker.Render(sym)}, args...)...)
		return err
	}

	switch e := ev.(type) {
	case *event.Combat:
		switch {
		case e.Miss:
			return line(st.miss, "~", "miss")
		case e.Critical:
			return line(st.critical, "!", "critical %s", e.Amount)
		default:
			return line(st.hit, ">", "hit %s", e.Amount)
		}
	case *event.Heal:
		return line(st.heal, "+", "healed %s", e.Amount)
	case *event.Skill:
		return line(st.skill, "^", "%s +%s", e.Skill, e.Amount)
	case *event.EnhancerBreak:
		return line(st.broke, "x", "enhancer broke: %s", e.Enhancer)
	case *event.Loot:
		return line(st.loot, "$", "%s x%d (%s PED)", e.Item, e.Quantity, e.Value.StringFixed(4))
	case *event.Global:
		var extra []string
		if e.Location != "" {
			extra = append(extra, "at "+e.Location)
		}
		if e.HallOfFame {
			extra = append(extra, "HoF")
		}
		suffix := ""
		if len(extra) > 0 {
			suffix = " [" + strings.Join(extra, ", ") + "]"
		}
		return line(st.global, "*", "%s: %s %s PED%s", e.Player, e.Subject, e.Value, suffix)
	default:
		return line(st.other, "-", "%s", ev.Kind())
	}
}

// parseKinds converts --types values to kinds. Values may also be
// comma-separated within one flag.
func parseKinds(values []string) ([]event.Kind, error) {
	var kinds []event.Kind
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			k, ok := event.ParseKind(name)
			if !ok {
				return nil, fmt.Errorf("unknown event type %q (valid: %s)", name, strings.Join(event.KindNames(), ", "))
			}
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
