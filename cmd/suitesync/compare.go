package main

import (
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare [source] [target]",
	Short: "Show the differences between two report suites",
	Long: `Fetch every requested category from both report suites and show what
exists only on one side and which fields differ. Nothing is written.
Without arguments the configured source is compared with the first target.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runCompare,
}

var compareCategories []string

func init() {
	compareCmd.Flags().StringArrayVar(&compareCategories, "category", nil, "Category to compare, repeatable (default all)")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	source := a.settings.Suites.Source
	var target string
	if targets := a.settings.Suites.Targets(); len(targets) > 0 {
		target = targets[0]
	}
	if len(args) > 0 {
		source = args[0]
	}
	if len(args) > 1 {
		target = args[1]
	}

	comparison, err := a.syncer.Compare(cmd.Context(), source, target, compareCategories)
	if err != nil {
		return err
	}

	output, err := a.renderer.FormatComparison(comparison, a.settings.Output.Format)
	if err != nil {
		return err
	}
	printOutput(cmd, output)
	return nil
}
