package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pedlog/pedlog-go/pkg/pedlog/rules"
)

var listRulesFile string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active classification rules",
	Long: `List the rules lines are classified with, in evaluation order.
The first matching rule of a channel's table wins.

With --rules, the rule file is validated and its rules are listed instead
of the built-in ones.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().StringVarP(&listRulesFile, "rules", "r", "",
		"YAML rule file to validate and list")
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	system, globals := rules.System(), rules.Globals()
	if listRulesFile != "" {
		var err error
		if system, globals, err = rules.LoadTables(listRulesFile); err != nil {
			return fmt.Errorf("rule file: %w", err)
		}
	}
	return writeRules(cmd.OutOrStdout(), system, globals)
}

// writeRules prints both tables as aligned columns. A nil table is shown
// as disabled.
func writeRules(out io.Writer, system, globals *rules.Table) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\t#\tID\tKIND\tPATTERN")
	for _, tbl := range []struct {
		channel string
		table   *rules.Table
	}{
		{rules.ChannelSystem, system},
		{rules.ChannelGlobals, globals},
	} {
		if tbl.table == nil {
			fmt.Fprintf(tw, "%s\t-\t(disabled)\t\t\n", tbl.channel)
			continue
		}
		for i, r := range tbl.table.Rules() {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", tbl.channel, i+1, r.ID, r.Kind, r.Pattern)
		}
	}
	return tw.Flush()
}
