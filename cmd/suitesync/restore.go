package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonderfulspam/suitesync/pkg/backup"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup>",
	Short: "Write a backup artifact back to report suites",
	Long: `Write the item lists of a backup artifact verbatim to the target report
suites. The artifact is verified (category names, digest and tool version)
before anything is written. Without --target the artifact is restored to the
report suite it was captured from.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

var (
	restoreTargets    []string
	restoreCategories []string
)

func init() {
	flags := restoreCmd.Flags()
	flags.StringArrayVar(&restoreTargets, "target", nil, "Target report suite, repeatable (default the captured suite)")
	flags.StringArrayVar(&restoreCategories, "category", nil, "Category to restore, repeatable (default all)")
	flags.Bool("dry-run", false, "Show what would be restored without writing")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	artifact, err := a.backups.Load(ctx, args[0])
	if err != nil {
		return err
	}

	targets := restoreTargets
	if len(targets) == 0 {
		targets = []string{artifact.Environment}
	}
	if err := refusePlaceholders(targets...); err != nil {
		return err
	}

	if _, err := a.syncer.Connect(ctx); err != nil {
		return err
	}

	result, restoreErr := a.backups.Restore(ctx, artifact, targets, restoreCategories, backup.RestoreOptions{
		DryRun: a.settings.Policy.DryRun,
	})
	if result == nil {
		return restoreErr
	}

	output, err := a.renderer.FormatRestore(result, a.settings.Output.Format)
	if err != nil {
		return err
	}
	printOutput(cmd, output)

	if restoreErr != nil {
		return fmt.Errorf("restore incomplete: %w", restoreErr)
	}
	return nil
}
