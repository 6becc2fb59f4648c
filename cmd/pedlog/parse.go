package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pedlog/pedlog-go/pkg/pedlog"
)

var (
	// parse flags
	parseFormat string
	parseTypes  []string
	parseRules  string
	parseStrict bool
)

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Classify an existing chat log",
	Long: `Read existing chat log files from the start and output their events.
The files are not followed.

Examples:
  # All events from a saved log
  pedlog parse chat.log

  # Only skill gains, human-readable
  pedlog parse --types skill --format pretty chat.log

  # Fail on the first malformed line
  pedlog parse --strict chat.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "jsonl",
		"Output format: "+strings.Join(formatNames(), ", "))
	parseCmd.Flags().StringSliceVarP(&parseTypes, "types", "t", nil,
		"Event types to show (comma-separated)")
	parseCmd.Flags().StringVarP(&parseRules, "rules", "r", "",
		"YAML rule file replacing the built-in rules")
	parseCmd.Flags().BoolVar(&parseStrict, "strict", false,
		"Stop at the first malformed or unreadable line")

	_ = parseCmd.RegisterFlagCompletionFunc("types", completeKinds)

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	p, err := newPrinter(parseFormat, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	kinds, err := parseKinds(parseTypes)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if parseRules != "" {
		cfg.RulesFile = parseRules
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := append(cfg.ReaderOptions(), pedlog.WithIncludeKinds(kinds...))
	for _, path := range args {
		for ev, err := range pedlog.ParseFile(ctx, path, opts...) {
			if err != nil {
				var re *pedlog.ReaderError
				if parseStrict || errors.As(err, &re) || ctx.Err() != nil {
					return err
				}
				logger.Warn("skipping line", "file", path, "error", err)
				continue
			}
			if err := p.print(ev); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		}
		logger.Debug("parsed file", slog.String("file", path))
	}
	return nil
}
