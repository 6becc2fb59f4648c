package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/pedlog/pedlog-go/internal/safefile"
	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

const (
	// MaxRuleFileSize is the maximum allowed size for a rule file (1MB).
	MaxRuleFileSize = 1 * 1024 * 1024

	// MaxRegexLength is the maximum allowed length for a rule regex.
	MaxRegexLength = 512

	// MaxRuleCount is the maximum number of rules per table.
	MaxRuleCount = 1000

	// SupportedVersion is the currently supported rule file format version.
	SupportedVersion = 1
)

// File is the YAML form of a rule set. Rules are evaluated in file order.
//
// Example:
//
//	version: 1
//	system:
//	  - id: damage_critical
//	    kind: combat
//	    regex: 'Critical hit - Additional damage! You inflicted (\d+\.\d+) points of damage'
//	    fields:
//	      critical: true
//	globals:
//	  - id: creature
//	    kind: global
//	    regex: '([\p{L}\p{N}_\s''()]+) killed a creature \(([\p{L}\p{N}_\s(),]+)\) with a value of (\d+) PED!'
type File struct {
	Version int        `yaml:"version"`
	System  []RuleSpec `yaml:"system"`
	Globals []RuleSpec `yaml:"globals"`
}

// RuleSpec is a single rule definition in a rule file.
type RuleSpec struct {
	ID     string `yaml:"id"`
	Kind   string `yaml:"kind"`
	Regex  string `yaml:"regex"`
	Fields Fields `yaml:"fields"`
}

// Load reads and validates a rule file.
// Non-regular files (FIFOs, devices, symlinks) are rejected.
func Load(path string) (*File, error) {
	f, info, err := safefile.OpenRegular(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule file: %w", safefile.StripPath(err))
	}
	defer f.Close()

	if info.Size() == 0 {
		return nil, errors.New("rule file is empty")
	}
	if info.Size() > MaxRuleFileSize {
		return nil, fmt.Errorf("rule file too large: %d bytes (max %d)", info.Size(), MaxRuleFileSize)
	}

	// Read one byte past the limit to detect a file that grew after Stat.
	data, err := io.ReadAll(io.LimitReader(f, MaxRuleFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", safefile.StripPath(err))
	}

	return LoadBytes(data)
}

// LoadBytes parses and validates a rule file from memory.
// Unknown keys are rejected so that typos in field names do not silently
// disable a rule's fixed fields.
func LoadBytes(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, errors.New("rule file is empty")
	}
	if len(data) > MaxRuleFileSize {
		return nil, fmt.Errorf("rule file too large: %d bytes (max %d)", len(data), MaxRuleFileSize)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rf File
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := rf.Validate(); err != nil {
		return nil, err
	}
	return &rf, nil
}

// Validate checks the version, rule counts, required fields, ID uniqueness,
// kinds and regex lengths. Regexes are compiled by Tables.
func (rf *File) Validate() error {
	if rf.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", rf.Version, SupportedVersion),
		}
	}
	if len(rf.System) == 0 && len(rf.Globals) == 0 {
		return &ValidationError{
			Field:   "rules",
			Message: "at least one system or globals rule is required",
		}
	}

	for _, tbl := range []struct {
		name  string
		specs []RuleSpec
	}{
		{"system", rf.System},
		{"globals", rf.Globals},
	} {
		if len(tbl.specs) > MaxRuleCount {
			return &ValidationError{
				Field:   tbl.name,
				Message: fmt.Sprintf("too many rules (%d), maximum allowed is %d", len(tbl.specs), MaxRuleCount),
			}
		}
		if err := validateSpecs(tbl.name, tbl.specs); err != nil {
			return err
		}
	}
	return nil
}

func validateSpecs(table string, specs []RuleSpec) error {
	seen := make(map[string]int, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			return &RuleError{Table: table, Index: i, Field: "id", Message: "id is required"}
		}
		if prev, ok := seen[s.ID]; ok {
			return &RuleError{
				Table: table, Index: i, ID: s.ID, Field: "id",
				Message: fmt.Sprintf("duplicate id (previously defined at rule[%d])", prev),
			}
		}
		seen[s.ID] = i

		if s.Kind == "" {
			return &RuleError{Table: table, Index: i, ID: s.ID, Field: "kind", Message: "kind is required"}
		}
		if _, ok := event.ParseKind(s.Kind); !ok {
			return &RuleError{
				Table: table, Index: i, ID: s.ID, Field: "kind",
				Message: fmt.Sprintf("unknown kind %q", s.Kind),
			}
		}
		if s.Regex == "" {
			return &RuleError{Table: table, Index: i, ID: s.ID, Field: "regex", Message: "regex is required"}
		}
		if len(s.Regex) > MaxRegexLength {
			return &RuleError{
				Table: table, Index: i, ID: s.ID, Field: "regex",
				Message: fmt.Sprintf("regex too long: %d bytes (max %d)", len(s.Regex), MaxRegexLength),
			}
		}
	}
	return nil
}

// Tables compiles the file into its system and globals tables.
// A section with no rules yields a nil table, which disables that channel.
func (rf *File) Tables() (system, globals *Table, err error) {
	if system, err = compileSpecs("system", rf.System); err != nil {
		return nil, nil, err
	}
	if globals, err = compileSpecs("globals", rf.Globals); err != nil {
		return nil, nil, err
	}
	return system, globals, nil
}

func compileSpecs(table string, specs []RuleSpec) (*Table, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		re, err := regexp.Compile(s.Regex)
		if err != nil {
			return nil, &RuleError{
				Table: table, Index: i, ID: s.ID, Field: "regex",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
				Cause:   err,
			}
		}
		kind, _ := event.ParseKind(s.Kind)
		rules = append(rules, Rule{
			ID:      s.ID,
			Kind:    kind,
			Pattern: re,
			Fields:  s.Fields,
		})
	}
	return NewTable(table, rules)
}

// LoadTables loads a rule file and compiles its tables in one step.
func LoadTables(path string) (system, globals *Table, err error) {
	rf, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	return rf.Tables()
}
