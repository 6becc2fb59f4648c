package pedlog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pedlog/pedlog-go/internal/buffer"
	"github.com/pedlog/pedlog-go/internal/tailer"
	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
	"github.com/pedlog/pedlog-go/pkg/pedlog/rules"
)

// ReaderOption configures a Reader using the functional options pattern.
type ReaderOption func(*readerConfig)

// readerConfig holds internal configuration for the reader.
type readerConfig struct {
	logger       *slog.Logger
	capacity     int
	pollInterval time.Duration
	reOpen       bool
	fromStart    bool
	loc          *time.Location
	rulesFile    string
	system       *rules.Table
	globals      *rules.Table
	customRules  bool
	include      map[event.Kind]struct{}
}

// defaultReaderConfig returns a readerConfig with sensible defaults.
func defaultReaderConfig() *readerConfig {
	return &readerConfig{
		capacity:     buffer.DefaultCapacity,
		pollInterval: tailer.DefaultPollInterval,
		reOpen:       true,
	}
}

// applyReaderOptions applies functional options to a readerConfig.
func applyReaderOptions(opts []ReaderOption) *readerConfig {
	cfg := defaultReaderConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option combinations.
func (c *readerConfig) validate() error {
	if c.capacity < 0 {
		return fmt.Errorf("buffer capacity must be non-negative, got %d", c.capacity)
	}
	if c.pollInterval < 0 {
		return fmt.Errorf("poll interval must be non-negative, got %v", c.pollInterval)
	}
	if c.customRules && c.rulesFile != "" {
		return fmt.Errorf("WithRules and WithRulesFile are mutually exclusive")
	}
	return nil
}

// classifier builds the classifier selected by the options.
func (c *readerConfig) classifier() (*rules.Classifier, error) {
	switch {
	case c.rulesFile != "":
		system, globals, err := rules.LoadTables(c.rulesFile)
		if err != nil {
			return nil, &ReaderError{Op: ReaderOpRules, Err: err}
		}
		return rules.NewClassifier(system, globals, c.loc), nil
	case c.customRules:
		return rules.NewClassifier(c.system, c.globals, c.loc), nil
	default:
		return rules.NewClassifier(rules.System(), rules.Globals(), c.loc), nil
	}
}

// allows reports whether events of kind k pass the kind filter.
func (c *readerConfig) allows(k event.Kind) bool {
	if c.include == nil {
		return true
	}
	_, ok := c.include[k]
	return ok
}

// WithLogger sets a custom logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(c *readerConfig) {
		c.logger = logger
	}
}

// WithCapacity sets the event buffer capacity.
// When the buffer overflows, the oldest events are dropped so that half of
// the capacity remains. Zero selects the default of 1000.
func WithCapacity(n int) ReaderOption {
	return func(c *readerConfig) {
		c.capacity = n
	}
}

// WithPollInterval sets how often the log file is checked for new lines.
// Default: 10ms. Zero switches to file system notifications.
//
// The interval is process-wide: the first polling reader started in the
// process sets it, and values given to later readers are ignored.
func WithPollInterval(interval time.Duration) ReaderOption {
	return func(c *readerConfig) {
		c.pollInterval = interval
	}
}

// WithReOpen configures whether the log file is reopened after it is moved
// or deleted. When false, the reader stops once the file disappears.
// Default: true.
func WithReOpen(reopen bool) ReaderOption {
	return func(c *readerConfig) {
		c.reOpen = reopen
	}
}

// WithFromStart reads the existing content of the log before following it.
// Default: false (only lines written after Start).
func WithFromStart(fromStart bool) ReaderOption {
	return func(c *readerConfig) {
		c.fromStart = fromStart
	}
}

// WithTimeLocation sets the time zone line timestamps are interpreted in.
// Default: time.Local.
func WithTimeLocation(loc *time.Location) ReaderOption {
	return func(c *readerConfig) {
		c.loc = loc
	}
}

// WithRules replaces the built-in rule tables. A nil table disables its
// channel.
func WithRules(system, globals *rules.Table) ReaderOption {
	return func(c *readerConfig) {
		c.system = system
		c.globals = globals
		c.customRules = true
	}
}

// WithRulesFile loads the rule tables from a YAML rule file instead of
// using the built-in ones. See the rules package for the format.
func WithRulesFile(path string) ReaderOption {
	return func(c *readerConfig) {
		c.rulesFile = path
	}
}

// WithIncludeKinds keeps only events of the given kinds. Other events are
// dropped before they reach the buffer.
// If called multiple times, only the last call takes effect.
func WithIncludeKinds(kinds ...event.Kind) ReaderOption {
	return func(c *readerConfig) {
		if len(kinds) == 0 {
			c.include = nil
			return
		}
		c.include = make(map[event.Kind]struct{}, len(kinds))
		for _, k := range kinds {
			c.include[k] = struct{}{}
		}
	}
}
