package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wonderfulspam/suitesync/pkg/analytics"
	"github.com/wonderfulspam/suitesync/pkg/backup"
	"github.com/wonderfulspam/suitesync/pkg/config"
	"github.com/wonderfulspam/suitesync/pkg/history"
	"github.com/wonderfulspam/suitesync/pkg/logging"
	"github.com/wonderfulspam/suitesync/pkg/renderer"
	"github.com/wonderfulspam/suitesync/pkg/syncer"
)

// flagKeys maps command line flags to settings keys.
var flagKeys = map[string]string{
	"backend":          "backend.type",
	"fixture":          "backend.fixture",
	"log-level":        "log.level",
	"log-format":       "log.encoding",
	"output":           "output.format",
	"verbose":          "output.verbose",
	"source":           "suites.source",
	"dry-run":          "policy.dry_run",
	"include-disabled": "policy.include_disabled",
	"changed-only":     "policy.changed_only",
}

var flushLogs func()

// loadSettings reads settings for cmd and installs the logger.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	v := viper.New()
	if err := config.BindFlagsToViper(cmd.Flags(), v, flagKeys); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	settings, err := config.Load(config.LoadOptions{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Viper:      v,
	})
	if err != nil {
		return nil, err
	}

	if flushLogs != nil {
		flushLogs()
		flushLogs = nil
	}
	flush, err := logging.Init(settings.Log.Level, settings.Log.Encoding)
	if err != nil {
		return nil, err
	}
	flushLogs = flush
	return settings, nil
}

// app is the wiring shared by commands that talk to report suites.
type app struct {
	settings *config.Settings
	client   analytics.Client
	backups  *backup.Manager
	syncer   *syncer.Syncer
	renderer *renderer.Renderer
}

func newApp(cmd *cobra.Command) (*app, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	backendType, err := analytics.ParseBackendType(settings.Backend.Type)
	if err != nil {
		return nil, err
	}
	client, err := analytics.NewClient(backendType, settings.ClientConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create analytics client")
	}

	store, err := backup.NewStore(cmd.Context(), settings.Backup)
	if err != nil {
		return nil, errors.Wrap(err, "open backup store")
	}
	backups := backup.NewManager(client, store)

	return &app{
		settings: settings,
		client:   client,
		backups:  backups,
		syncer:   syncer.New(client, backups),
		renderer: renderer.New(settings.Output.Verbose),
	}, nil
}

// targets returns explicit targets when given, the configured ones otherwise.
func (a *app) targets(explicit []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	return a.settings.Suites.Targets()
}

// refusePlaceholders rejects runs against the built-in dummy suite ids.
func refusePlaceholders(rsids ...string) error {
	var placeholders []string
	for _, rsid := range rsids {
		if config.IsPlaceholder(rsid) {
			placeholders = append(placeholders, rsid)
		}
	}
	if len(placeholders) == 0 {
		return nil
	}
	err := errors.Newf("placeholder report suite ids in use: %s", strings.Join(placeholders, ", "))
	return errors.WithHint(err, "set AA_PRODUCTION_RSID, AA_DEV_RSID and AA_STAGING_RSID or edit the suites section of "+config.DefaultFile)
}

// openHistory opens the run journal, or returns nil when it is disabled.
func openHistory(settings *config.Settings) (*history.SQLiteStore, error) {
	if !settings.History.Enabled {
		return nil, nil
	}
	return history.Open(settings.History.Path)
}

func printOutput(cmd *cobra.Command, output string) {
	fmt.Fprint(cmd.OutOrStdout(), output)
}
