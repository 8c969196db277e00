package config

import (
	"fmt"
	"os"
)

const template = `# suitesync configuration
# Environment variables override this file: AA_ORG_ID, AA_CLIENT_ID,
# AA_CLIENT_SECRET, AA_SCOPES, AA_CONFIG_FILE, AA_PRODUCTION_RSID, AA_DEV_RSID,
# AA_STAGING_RSID. Any other key can be set as SUITESYNC_<SECTION>_<KEY>.

backend:
  type: api          # api or simulation
  # fixture: fixtures/suites.yml   # seeds the simulation backend

oauth:
  # Prefer the environment or a .env file for credentials.
  # org_id: ""
  # client_id: ""
  # client_secret: ""
  scopes: "openid,AdobeID,read_organizations,additional_info.projectedProductContext,additional_info.job_function"
  credentials_file: config_analytics_oauth.json

suites:
  source: dummycompanyprod    # source of truth, never written
  dev: dummycompanydev
  staging: dummycompanystg
  # extra:
  #   - anothersuite

policy:
  dry_run: false
  include_disabled: false
  changed_only: false

backup:
  type: file         # file, s3 or gcs
  dir: backups
  # bucket: my-suitesync-backups
  # prefix: suitesync/
  # region: eu-west-1

history:
  enabled: true
  path: .suitesync/history.db

api:
  timeout: 30s
  requests_per_second: 4
  max_retries: 3

log:
  level: info        # debug, info, warn, error
  encoding: console  # console or json

output:
  format: table      # table, json or yaml
  verbose: false
`

// Template returns a commented config file with every setting.
func Template() string {
	return template
}

// WriteTemplate writes the template to path. An existing file is never
// overwritten.
func WriteTemplate(path string) error {
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file %s already exists", path)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}
