package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy report suite configuration from the source to every target",
	Long: `Fetch each category from the source report suite, diff it against each
target, and write the in-scope items. Every target is backed up once before
its first write. Items that only exist in a target are never deleted.

Run one category with a subcommand (for example "suitesync sync evars") or
several with repeated --category flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, syncCategories)
	},
}

var (
	syncTargets    []string
	syncCategories []string
)

func init() {
	flags := syncCmd.PersistentFlags()
	flags.String("source", "", "Source report suite (default from configuration)")
	flags.StringArrayVar(&syncTargets, "target", nil, "Target report suite, repeatable (default from configuration)")
	flags.Bool("dry-run", false, "Plan the run without writing anything")
	flags.Bool("include-disabled", false, "Also create items that are disabled in the source")
	flags.Bool("changed-only", false, "Write only created and updated items; full-set categories still resend their whole list")
	syncCmd.Flags().StringArrayVar(&syncCategories, "category", nil, "Category to sync, repeatable (default all)")

	for _, category := range catalog.All() {
		syncCmd.AddCommand(&cobra.Command{
			Use:   string(category),
			Short: fmt.Sprintf("Sync %s only", catalog.MustDescribe(category).Label),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSync(cmd, []string{string(category)})
			},
		})
	}

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, categories []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	source := a.settings.Suites.Source
	targets := a.targets(syncTargets)
	if err := refusePlaceholders(append([]string{source}, targets...)...); err != nil {
		return err
	}

	ctx := cmd.Context()
	report, syncErr := a.syncer.Sync(ctx, syncer.Request{
		Source:     source,
		Targets:    targets,
		Categories: categories,
		Policy:     a.settings.Policy,
	})
	if report == nil {
		return syncErr
	}

	journal, err := openHistory(a.settings)
	if err != nil {
		otelzap.Ctx(ctx).Warn("Run journal unavailable", zap.Error(err))
	} else if journal != nil {
		if err := journal.Record(ctx, report); err != nil {
			otelzap.Ctx(ctx).Warn("Failed to record run", zap.String("run_id", report.RunID), zap.Error(err))
		}
		_ = journal.Close()
	}

	output, err := a.renderer.FormatReport(report, a.settings.Output.Format)
	if err != nil {
		return err
	}
	printOutput(cmd, output)

	if syncErr != nil {
		return syncErr
	}
	if failed := report.Summary().Failed; failed > 0 {
		return fmt.Errorf("%d of %d sync entries failed", failed, len(report.Entries))
	}
	return nil
}
