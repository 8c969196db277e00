package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the configuration categories in processing order",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%-26s %-28s %-10s %s\n", "NAME", "LABEL", "KEY", "WRITES")
	for _, c := range catalog.All() {
		desc := catalog.MustDescribe(c)

		key := desc.KeyField
		if desc.Indexed() {
			key = "(position)"
		}
		writes := "upsert"
		if !desc.Idempotent {
			writes = "full set"
		}
		fmt.Fprintf(out, "%-26s %-28s %-10s %s\n", c, desc.Label, key, writes)
	}
	return nil
}
