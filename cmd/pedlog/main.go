// Command pedlog follows the Entropia Universe chat log and prints the
// events it reports.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pedlog/pedlog-go/internal/config"
)

var (
	// global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "pedlog",
	Short: "Entropia Universe chat log event reader",
	Long: `pedlog follows the Entropia Universe chat log and classifies each new
line into events: damage, heals, skill gains, loot and globals.

The chat log is found automatically under Documents\Entropia Universe.
Use --location or the PEDLOG_LOCATION environment variable to override it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file (default: <user config dir>/pedlog/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file named by --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

// newLogger returns a text logger on w. Event output goes to stdout, so
// diagnostics go to stderr.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
