package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonderfulspam/suitesync/pkg/history"
	"github.com/wonderfulspam/suitesync/pkg/renderer"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the journal of past sync runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sync runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full report of a past sync run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyLimit int

func init() {
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list (0 for all)")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openJournal(cmd *cobra.Command) (*history.SQLiteStore, *renderer.Renderer, string, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, "", err
	}
	if !settings.History.Enabled {
		return nil, nil, "", fmt.Errorf("run history is disabled (history.enabled: false)")
	}
	journal, err := history.Open(settings.History.Path)
	if err != nil {
		return nil, nil, "", err
	}
	return journal, renderer.New(settings.Output.Verbose), settings.Output.Format, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	journal, r, format, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer journal.Close()

	runs, err := journal.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	output, err := r.FormatRuns(runs, format)
	if err != nil {
		return err
	}
	printOutput(cmd, output)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	journal, r, format, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer journal.Close()

	report, err := journal.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	output, err := r.FormatReport(report, format)
	if err != nil {
		return err
	}
	printOutput(cmd, output)
	return nil
}
