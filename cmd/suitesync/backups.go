package main

import (
	"github.com/spf13/cobra"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List stored backup artifacts",
	Args:  cobra.NoArgs,
	RunE:  runBackupsList,
}

var backupsShowCmd = &cobra.Command{
	Use:   "show <backup>",
	Short: "Show the metadata and item counts of a backup artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupsShow,
}

func init() {
	backupsCmd.AddCommand(backupsShowCmd)
	rootCmd.AddCommand(backupsCmd)
}

func runBackupsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	refs, err := a.backups.List(cmd.Context())
	if err != nil {
		return err
	}

	output, err := a.renderer.FormatBackups(refs, a.settings.Output.Format)
	if err != nil {
		return err
	}
	printOutput(cmd, output)
	return nil
}

func runBackupsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	artifact, err := a.backups.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	output, err := a.renderer.FormatArtifact(artifact, a.settings.Output.Format)
	if err != nil {
		return err
	}
	printOutput(cmd, output)
	return nil
}
