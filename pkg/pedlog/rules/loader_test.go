package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

const validRules = `version: 1
system:
  - id: crit
    kind: combat
    regex: 'Critical hit - Additional damage! You inflicted (\d+\.\d+) points of damage'
    fields:
      critical: true
  - id: hit
    kind: COMBAT
    regex: 'You inflicted (\d+\.\d+) points of damage'
globals:
  - id: creature_hof
    kind: global
    regex: '([\w\s''()]+) killed a creature \(([\w\s(),]+)\) with a value of (\d+) PED! A record'
    fields:
      hof: true
`

func TestLoadBytes(t *testing.T) {
	rf, err := LoadBytes([]byte(validRules))
	require.NoError(t, err)
	assert.Equal(t, 1, rf.Version)
	require.Len(t, rf.System, 2)
	assert.True(t, rf.System[0].Fields.Critical)
	assert.True(t, rf.Globals[0].Fields.HallOfFame)

	system, globals, err := rf.Tables()
	require.NoError(t, err)
	assert.Equal(t, 2, system.Len())
	assert.Equal(t, 1, globals.Len())

	ev, id, err := system.Match("Critical hit - Additional damage! You inflicted 10.0 points of damage")
	require.NoError(t, err)
	assert.Equal(t, "crit", id)
	assert.True(t, ev.(*event.Combat).Critical)

	ev, _, err = system.Match("You inflicted 10.0 points of damage")
	require.NoError(t, err)
	assert.Equal(t, event.KindCombat, ev.Kind())

	ev, _, err = globals.Match("Jane killed a creature (Foo) with a value of 99 PED! A record has been added to the Hall of Fame!")
	require.NoError(t, err)
	assert.True(t, ev.(*event.Global).HallOfFame)
}

func TestLoadBytes_OnlyOneSection(t *testing.T) {
	rf, err := LoadBytes([]byte("version: 1\nsystem:\n  - id: a\n    kind: deflect\n    regex: 'x'\n"))
	require.NoError(t, err)
	system, globals, err := rf.Tables()
	require.NoError(t, err)
	assert.NotNil(t, system)
	assert.Nil(t, globals)
}

func TestLoadBytes_Errors(t *testing.T) {
	long := strings.Repeat("a", MaxRegexLength+1)
	tests := []struct {
		name    string
		yaml    string
		wantVal bool   // *ValidationError
		field   string // *RuleError field
	}{
		{name: "empty", yaml: ""},
		{name: "bad yaml", yaml: "version: [1"},
		{name: "unknown key", yaml: "version: 1\nsystem:\n  - id: a\n    kind: heal\n    regexp: '(\\d+)'\n"},
		{name: "unknown field key", yaml: "version: 1\nsystem:\n  - id: a\n    kind: heal\n    regex: '(\\d+)'\n    fields:\n      crit: true\n"},
		{name: "version", yaml: "version: 2\nsystem:\n  - id: a\n    kind: heal\n    regex: '(\\d+)'\n", wantVal: true},
		{name: "no rules", yaml: "version: 1\n", wantVal: true},
		{name: "missing id", yaml: "version: 1\nsystem:\n  - kind: heal\n    regex: '(\\d+)'\n", field: "id"},
		{name: "duplicate id", yaml: "version: 1\nglobals:\n  - id: a\n    kind: deflect\n    regex: 'x'\n  - id: a\n    kind: deflect\n    regex: 'y'\n", field: "id"},
		{name: "missing kind", yaml: "version: 1\nsystem:\n  - id: a\n    regex: 'x'\n", field: "kind"},
		{name: "unknown kind", yaml: "version: 1\nsystem:\n  - id: a\n    kind: teleport\n    regex: 'x'\n", field: "kind"},
		{name: "missing regex", yaml: "version: 1\nsystem:\n  - id: a\n    kind: deflect\n", field: "regex"},
		{name: "regex too long", yaml: "version: 1\nsystem:\n  - id: a\n    kind: deflect\n    regex: '" + long + "'\n", field: "regex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.yaml))
			require.Error(t, err)
			if tt.wantVal {
				var ve *ValidationError
				assert.ErrorAs(t, err, &ve)
			}
			if tt.field != "" {
				var re *RuleError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, tt.field, re.Field)
			}
		})
	}
}

func TestTables_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid regex", "version: 1\nsystem:\n  - id: a\n    kind: deflect\n    regex: '(['\n"},
		{"too few groups", "version: 1\nsystem:\n  - id: a\n    kind: loot\n    regex: '(\\d+)'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf, err := LoadBytes([]byte(tt.yaml))
			require.NoError(t, err)
			_, _, err = rf.Tables()
			var re *RuleError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "regex", re.Field)
			assert.Equal(t, "a", re.ID)
		})
	}
}

func TestRuleError_Unwrap(t *testing.T) {
	rf, err := LoadBytes([]byte("version: 1\nsystem:\n  - id: a\n    kind: deflect\n    regex: '(['\n"))
	require.NoError(t, err)
	_, _, err = rf.Tables()
	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.NotNil(t, errors.Unwrap(re))
	assert.Contains(t, re.Error(), `system rule "a"`)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRules), 0o644))

	system, globals, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, 2, system.Len())
	assert.Equal(t, 1, globals.Len())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), dir, "path should be stripped")

	_, err = Load(dir)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Load(empty)
	assert.ErrorContains(t, err, "empty")

	big := filepath.Join(dir, "big.yaml")
	require.NoError(t, os.WriteFile(big, make([]byte, MaxRuleFileSize+1), 0o644))
	_, err = Load(big)
	assert.ErrorContains(t, err, "too large")
}

func TestDefaultTablesRoundTrip(t *testing.T) {
	// The built-in rules must be expressible as a rule file.
	var sb strings.Builder
	sb.WriteString("version: 1\n")
	for _, section := range []struct {
		name  string
		table *Table
	}{{"system", System()}, {"globals", Globals()}} {
		sb.WriteString(section.name + ":\n")
		for _, r := range section.table.Rules() {
			sb.WriteString("  - id: " + r.ID + "\n")
			sb.WriteString("    kind: " + string(r.Kind) + "\n")
			sb.WriteString("    regex: '" + strings.ReplaceAll(r.Pattern.String(), "'", "''") + "'\n")
			sb.WriteString("    fields:\n")
			sb.WriteString("      critical: " + boolString(r.Fields.Critical) + "\n")
			sb.WriteString("      miss: " + boolString(r.Fields.Miss) + "\n")
			sb.WriteString("      hof: " + boolString(r.Fields.HallOfFame) + "\n")
		}
	}

	rf, err := LoadBytes([]byte(sb.String()))
	require.NoError(t, err)
	system, globals, err := rf.Tables()
	require.NoError(t, err)

	for i, r := range System().Rules() {
		got := system.Rules()[i]
		assert.Equal(t, r.ID, got.ID)
		assert.Equal(t, r.Fields, got.Fields)
		assert.Equal(t, r.Pattern.String(), got.Pattern.String())
	}
	assert.Equal(t, Globals().Len(), globals.Len())
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
