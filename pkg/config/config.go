// Package config loads suitesync settings from defaults, a YAML file, a .env
// file, the environment and command line flags, in that order of precedence
// (flags win).
package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wonderfulspam/suitesync/pkg/analytics"
	"github.com/wonderfulspam/suitesync/pkg/backup"
	"github.com/wonderfulspam/suitesync/pkg/history"
	"github.com/wonderfulspam/suitesync/pkg/scope"
)

const (
	// DefaultFile is the config file searched for in the working directory.
	DefaultFile = ".suitesync.yml"
	// DefaultEnvFile is loaded into the environment when present.
	DefaultEnvFile = ".env"
	// DefaultCredentialsFile is the OAuth credentials JSON file.
	DefaultCredentialsFile = "config_analytics_oauth.json"

	dummyMarker = "dummy"
)

type Settings struct {
	Backend Backend            `mapstructure:"backend" yaml:"backend"`
	OAuth   OAuth              `mapstructure:"oauth" yaml:"oauth"`
	Suites  Suites             `mapstructure:"suites" yaml:"suites"`
	Policy  scope.Policy       `mapstructure:"policy" yaml:"policy"`
	Backup  backup.StoreConfig `mapstructure:"backup" yaml:"backup"`
	History History            `mapstructure:"history" yaml:"history"`
	API     API                `mapstructure:"api" yaml:"api"`
	Log     Log                `mapstructure:"log" yaml:"log"`
	Output  Output             `mapstructure:"output" yaml:"output"`
}

// Backend selects the remote client implementation.
type Backend struct {
	Type string `mapstructure:"type" yaml:"type" validate:"oneof=api simulation"`
	// Fixture seeds the simulation backend.
	Fixture string `mapstructure:"fixture" yaml:"fixture,omitempty"`
}

// OAuth holds server-to-server credentials.
type OAuth struct {
	OrgID        string `mapstructure:"org_id" yaml:"org_id"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	// Scopes is comma separated.
	Scopes          string `mapstructure:"scopes" yaml:"scopes"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	TokenURL        string `mapstructure:"token_url" yaml:"token_url" validate:"omitempty,url"`
	DiscoveryURL    string `mapstructure:"discovery_url" yaml:"discovery_url" validate:"omitempty,url"`
}

// Suites names the source of truth and the targets kept in line with it.
type Suites struct {
	Source  string   `mapstructure:"source" yaml:"source" validate:"required"`
	Dev     string   `mapstructure:"dev" yaml:"dev"`
	Staging string   `mapstructure:"staging" yaml:"staging"`
	Extra   []string `mapstructure:"extra" yaml:"extra,omitempty"`
}

// Targets returns the configured targets in order, without blanks or
// duplicates.
func (s Suites) Targets() []string {
	seen := map[string]bool{}
	var out []string
	for _, rsid := range append([]string{s.Dev, s.Staging}, s.Extra...) {
		rsid = strings.TrimSpace(rsid)
		if rsid == "" || seen[rsid] {
			continue
		}
		seen[rsid] = true
		out = append(out, rsid)
	}
	return out
}

type History struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type API struct {
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	MaxRetries        uint64        `mapstructure:"max_retries" yaml:"max_retries"`
}

type Log struct {
	Level    string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Encoding string `mapstructure:"encoding" yaml:"encoding" validate:"oneof=console json"`
}

type Output struct {
	Format  string `mapstructure:"format" yaml:"format" validate:"oneof=table json yaml"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
}

// Defaults returns the built-in settings. Suite ids are placeholders that
// must be replaced before a sync runs.
func Defaults() Settings {
	return Settings{
		Backend: Backend{Type: string(analytics.BackendAPI)},
		OAuth: OAuth{
			Scopes:          analytics.DefaultScopes,
			CredentialsFile: DefaultCredentialsFile,
			TokenURL:        analytics.DefaultTokenURL,
			DiscoveryURL:    analytics.DefaultDiscoveryURL,
		},
		Suites: Suites{
			Source:  "dummycompanyprod",
			Dev:     "dummycompanydev",
			Staging: "dummycompanystg",
		},
		Backup: backup.StoreConfig{Type: backup.StoreFile, Dir: backup.DefaultDir},
		History: History{
			Enabled: true,
			Path:    history.DefaultPath,
		},
		API: API{
			Endpoint:          analytics.DefaultEndpoint,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 4,
			MaxRetries:        3,
		},
		Log:    Log{Level: "info", Encoding: "console"},
		Output: Output{Format: "table"},
	}
}

// envBindings maps settings keys to their historical environment names.
var envBindings = map[string]string{
	"oauth.org_id":           "AA_ORG_ID",
	"oauth.client_id":        "AA_CLIENT_ID",
	"oauth.client_secret":    "AA_CLIENT_SECRET",
	"oauth.scopes":           "AA_SCOPES",
	"oauth.credentials_file": "AA_CONFIG_FILE",
	"suites.source":          "AA_PRODUCTION_RSID",
	"suites.dev":             "AA_DEV_RSID",
	"suites.staging":         "AA_STAGING_RSID",
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("backend.type", d.Backend.Type)
	v.SetDefault("backend.fixture", d.Backend.Fixture)

	v.SetDefault("oauth.org_id", d.OAuth.OrgID)
	v.SetDefault("oauth.client_id", d.OAuth.ClientID)
	v.SetDefault("oauth.client_secret", d.OAuth.ClientSecret)
	v.SetDefault("oauth.scopes", d.OAuth.Scopes)
	v.SetDefault("oauth.credentials_file", d.OAuth.CredentialsFile)
	v.SetDefault("oauth.token_url", d.OAuth.TokenURL)
	v.SetDefault("oauth.discovery_url", d.OAuth.DiscoveryURL)

	v.SetDefault("suites.source", d.Suites.Source)
	v.SetDefault("suites.dev", d.Suites.Dev)
	v.SetDefault("suites.staging", d.Suites.Staging)

	v.SetDefault("policy.dry_run", d.Policy.DryRun)
	v.SetDefault("policy.include_disabled", d.Policy.IncludeDisabled)
	v.SetDefault("policy.changed_only", d.Policy.ChangedOnly)

	v.SetDefault("backup.type", d.Backup.Type)
	v.SetDefault("backup.dir", d.Backup.Dir)
	v.SetDefault("backup.bucket", d.Backup.Bucket)
	v.SetDefault("backup.prefix", d.Backup.Prefix)
	v.SetDefault("backup.region", d.Backup.Region)
	v.SetDefault("backup.endpoint", d.Backup.Endpoint)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("api.endpoint", d.API.Endpoint)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.requests_per_second", d.API.RequestsPerSecond)
	v.SetDefault("api.max_retries", d.API.MaxRetries)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.verbose", d.Output.Verbose)
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile is an explicit config path. Empty searches for DefaultFile
	// in the working directory and tolerates its absence.
	ConfigFile string
	// EnvFile is loaded into the process environment if it exists.
	EnvFile string
	// Viper may carry flags bound with BindFlagsToViper.
	Viper *viper.Viper
}

// Load builds Settings from every source and validates them.
func Load(opts LoadOptions) (*Settings, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	setDefaults(v, Defaults())

	v.SetConfigType("yaml")
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", opts.ConfigFile)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		v.SetConfigFile(DefaultFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", DefaultFile)
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	v.SetEnvPrefix("SUITESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}

	if err := s.OAuth.mergeCredentialsFile(); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// credentialsFile is the JSON layout of the OAuth credentials file.
type credentialsFile struct {
	OrgID    string `json:"org_id"`
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
	Scopes   string `json:"scopes"`
}

// mergeCredentialsFile fills credentials missing from the environment from
// the credentials file, when it exists.
func (o *OAuth) mergeCredentialsFile() error {
	if o.CredentialsFile == "" || (o.OrgID != "" && o.ClientID != "" && o.ClientSecret != "") {
		return nil
	}
	data, err := os.ReadFile(o.CredentialsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read credentials %s", o.CredentialsFile)
	}

	var creds credentialsFile
	if err := json.Unmarshal(data, &creds); err != nil {
		return errors.Wrapf(err, "parse credentials %s", o.CredentialsFile)
	}
	if o.OrgID == "" {
		o.OrgID = creds.OrgID
	}
	if o.ClientID == "" {
		o.ClientID = creds.ClientID
	}
	if o.ClientSecret == "" {
		o.ClientSecret = creds.Secret
	}
	if creds.Scopes != "" && (o.Scopes == "" || o.Scopes == analytics.DefaultScopes) {
		o.Scopes = creds.Scopes
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
func (s *Settings) Validate() error {
	var result error

	if err := validator.New().Struct(s); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "invalid settings"))
	}

	targets := s.Suites.Targets()
	if len(targets) == 0 {
		result = multierror.Append(result, errors.New("suites: at least one target report suite is required"))
	}
	for _, target := range targets {
		if target == s.Suites.Source {
			result = multierror.Append(result, errors.Newf("suites: target %q is also the source", target))
		}
	}

	switch s.Backup.Type {
	case backup.StoreS3, backup.StoreGCS:
		if s.Backup.Bucket == "" {
			result = multierror.Append(result, errors.Newf("backup: bucket is required for %s storage", s.Backup.Type))
		}
	}

	return result
}

// UsingDefaults reports whether the placeholder suite ids are still in use.
func (s *Settings) UsingDefaults() bool {
	if IsPlaceholder(s.Suites.Source) {
		return true
	}
	for _, target := range s.Suites.Targets() {
		if IsPlaceholder(target) {
			return true
		}
	}
	return false
}

// IsPlaceholder reports whether rsid is one of the built-in dummy ids.
func IsPlaceholder(rsid string) bool {
	return strings.Contains(strings.ToLower(rsid), dummyMarker)
}

// ScopeList splits the comma separated scopes.
func (o OAuth) ScopeList() []string {
	var out []string
	for _, scope := range strings.Split(o.Scopes, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			out = append(out, scope)
		}
	}
	return out
}

// ClientConfig converts the settings into an analytics client config.
func (s *Settings) ClientConfig() *analytics.Config {
	return &analytics.Config{
		OrgID:             s.OAuth.OrgID,
		ClientID:          s.OAuth.ClientID,
		ClientSecret:      s.OAuth.ClientSecret,
		Scopes:            s.OAuth.ScopeList(),
		TokenURL:          s.OAuth.TokenURL,
		DiscoveryURL:      s.OAuth.DiscoveryURL,
		Endpoint:          s.API.Endpoint,
		Timeout:           s.API.Timeout,
		RequestsPerSecond: s.API.RequestsPerSecond,
		MaxRetries:        s.API.MaxRetries,
		FixturePath:       s.Backend.Fixture,
	}
}

// Redacted returns a copy safe to print.
func (s Settings) Redacted() Settings {
	if s.OAuth.ClientSecret != "" {
		s.OAuth.ClientSecret = "********"
	}
	s.Suites.Extra = append([]string(nil), s.Suites.Extra...)
	return s
}

// BindFlagsToViper binds every flag listed in keys to its settings key.
// Flags not in keys are left alone.
func BindFlagsToViper(flags *pflag.FlagSet, v *viper.Viper, keys map[string]string) error {
	var result error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result
}
