package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pedlog/pedlog-go/pkg/pedlog"
	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

var (
	// tail flags
	location   string
	format     string
	eventTypes []string
	fromStart  bool
	rulesFile  string
	drainEvery time.Duration
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the chat log and output events",
	Long: `Follow the chat log in real time and output classified events.

Events are output as JSON Lines by default (one JSON object per line),
which makes it easy to process with tools like jq.

Examples:
  # Follow with default settings (auto-detect chat.log)
  pedlog tail

  # Specify the log file
  pedlog tail --location "C:\Users\me\Documents\Entropia Universe\chat.log"

  # Output only loot and globals
  pedlog tail --types loot,global

  # Human-readable output
  pedlog tail --format pretty

  # Sum looted PED with jq
  pedlog tail --types loot | jq -r '.value'`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&location, "location", "l", "",
		"Chat log file or its directory (auto-detected if not specified)")
	tailCmd.Flags().StringVarP(&format, "format", "f", "jsonl",
		"Output format: "+strings.Join(formatNames(), ", "))
	tailCmd.Flags().StringSliceVarP(&eventTypes, "types", "t", nil,
		"Event types to show (comma-separated: "+strings.Join(event.KindNames(), ",")+")")
	tailCmd.Flags().BoolVar(&fromStart, "from-start", false,
		"Read the existing log before following it")
	tailCmd.Flags().StringVarP(&rulesFile, "rules", "r", "",
		"YAML rule file replacing the built-in rules")
	tailCmd.Flags().DurationVar(&drainEvery, "interval", 100*time.Millisecond,
		"How often buffered events are printed")

	_ = tailCmd.RegisterFlagCompletionFunc("types", completeKinds)
	_ = tailCmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return formatNames(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(tailCmd)
}

func completeKinds(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return event.KindNames(), cobra.ShellCompDirectiveNoFileComp
}

func runTail(cmd *cobra.Command, args []string) error {
	p, err := newPrinter(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if drainEvery <= 0 {
		return fmt.Errorf("--interval must be positive, got %v", drainEvery)
	}
	kinds, err := parseKinds(eventTypes)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if location != "" {
		cfg.LogPath = location
	}
	if rulesFile != "" {
		cfg.RulesFile = rulesFile
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	opts := append(cfg.ReaderOptions(),
		pedlog.WithLogger(logger),
		pedlog.WithFromStart(fromStart),
		pedlog.WithIncludeKinds(kinds...),
	)
	r, err := pedlog.NewReader(cfg, opts...)
	if err != nil {
		return err
	}
	if err := r.Start(); err != nil {
		return err
	}
	defer r.Stop()
	logger.Info("following chat log", "path", r.Path())

	// Setup context with signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return pump(ctx, r, p, drainEvery)
}

// pump prints buffered events every interval until ctx is done or the
// reader stops. Events still buffered when the reader stops are printed
// first.
func pump(ctx context.Context, r *pedlog.Reader, p *printer, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Check the state before draining so that nothing read before the
		// reader stopped is left behind.
		stopped := r.State() == pedlog.StateStopped
		if err := drain(r, p); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if stopped {
			return r.Err()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func drain(r *pedlog.Reader, p *printer) error {
	for {
		ev, ok := r.NextEvent()
		if !ok {
			return nil
		}
		if err := p.print(ev); err != nil {
			return err
		}
	}
}
