package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
)

var backupCmd = &cobra.Command{
	Use:   "backup [rsid...]",
	Short: "Capture every category of report suites into backup artifacts",
	Long: `Fetch every category of each report suite and store it as one artifact.
Without arguments every configured target is backed up.`,
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if _, err := a.syncer.Connect(ctx); err != nil {
		return err
	}

	envs := a.targets(args)
	if len(envs) == 0 {
		return fmt.Errorf("no report suites to back up")
	}

	out := cmd.OutOrStdout()
	for _, env := range envs {
		artifact, ref, err := a.backups.Backup(ctx, env)
		if err != nil {
			return err
		}

		if a.settings.Output.Format != "table" {
			output, err := a.renderer.FormatArtifact(artifact, a.settings.Output.Format)
			if err != nil {
				return err
			}
			printOutput(cmd, output)
			continue
		}

		items := 0
		for _, c := range catalog.All() {
			items += len(artifact.Categories[c])
		}
		fmt.Fprintf(out, "✅ Backed up %s (%d categories, %d items)\n", env, len(artifact.Categories), items)
		fmt.Fprintf(out, "   %s\n", ref)
	}
	return nil
}
