package rules

import "fmt"

// ValidationError represents a schema-level problem with a rule file
// (e.g. unsupported version, no rules).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// RuleError represents a problem with an individual rule definition,
// such as an invalid regex, a duplicate ID or an unknown kind.
type RuleError struct {
	Table   string // Table name ("system" or "globals")
	Index   int    // 0-based index of the rule in its table
	ID      string // Rule ID (may be empty if the ID is missing)
	Field   string
	Message string
	Cause   error // Underlying error (e.g. regex compile error)
}

func (e *RuleError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s rule %q: %s: %s", e.Table, e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s rule[%d]: %s: %s", e.Table, e.Index, e.Field, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *RuleError) Unwrap() error {
	return e.Cause
}

// BuildError is returned when a rule matched but a captured value (or the
// line timestamp) could not be converted to its field type.
type BuildError struct {
	RuleID string
	Field  string
	Value  string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("rule %q: invalid %s %q: %v", e.RuleID, e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying conversion error.
func (e *BuildError) Unwrap() error {
	return e.Err
}
