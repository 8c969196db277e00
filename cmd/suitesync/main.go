package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wonderfulspam/suitesync/pkg/syncerr"
	"github.com/wonderfulspam/suitesync/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "suitesync",
	Short: "Keep analytics report suites in line with production",
	Long: `suitesync copies report suite configuration (eVars, props, success
events, internal URL filters, marketing channels and list variables) from a
production report suite to development and staging suites. Every target is
backed up before it is written, and every run can be rehearsed with --dry-run.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if flushLogs != nil {
			flushLogs()
			flushLogs = nil
		}
	},
}

var (
	configFile string
	envFile    string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default .suitesync.yml if present)")
	flags.StringVar(&envFile, "env-file", "", "Environment file loaded before reading the environment (default .env)")
	flags.String("backend", "api", "Backend: api, simulation")
	flags.String("fixture", "", "YAML fixture seeding the simulation backend")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "console", "Log encoding: console, json")
	flags.StringP("output", "o", "table", "Output format: table, json, yaml")
	flags.BoolP("verbose", "v", false, "Show full details")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := syncerr.Hints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
