package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wonderfulspam/suitesync/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage suitesync configuration",
	Long:  `Manage suitesync configuration files, including initialization and validation.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Generate a default configuration file",
	Long: `Generate a commented suitesync configuration file with every setting
and its default. If no file is specified, creates .suitesync.yml in the
current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate the effective configuration",
	Long: `Load configuration from the file, .env, the environment and flags and
check it for correctness.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	outputFile := config.DefaultFile
	if len(args) > 0 {
		outputFile = args[0]
	}

	if err := config.WriteTemplate(outputFile); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Configuration file created: %s\n", outputFile)
	fmt.Fprintf(cmd.OutOrStdout(), "   Replace the dummy report suite ids before running a sync.\n")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		configFile = args[0]
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✅ Configuration is valid\n")
	if settings.UsingDefaults() {
		fmt.Fprintf(out, "⚠️  Placeholder report suite ids are still in use; sync will refuse to run\n")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(settings.Redacted())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
