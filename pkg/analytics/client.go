// Package analytics talks to the analytics admin API that holds report suite
// configuration. The API backend is the real service; the simulation backend
// keeps report suites in memory for rehearsals and tests.
package analytics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
)

// Client defines the interface for reading and writing report suite
// configuration.
type Client interface {
	// Connect authenticates and resolves the company. It must succeed before
	// any other call.
	Connect(ctx context.Context) (*Company, error)

	// Fetch returns the items of category c on report suite rsid.
	Fetch(ctx context.Context, rsid string, c catalog.Category) ([]catalog.Item, error)

	// Write saves items for category c on report suite rsid.
	Write(ctx context.Context, rsid string, c catalog.Category, items []catalog.Item) error
}

const (
	DefaultTokenURL     = "https://ims-na1.adobelogin.com/ims/token/v3"
	DefaultDiscoveryURL = "https://analytics.adobe.io"
	DefaultEndpoint     = "https://api.omniture.com/admin/1.4/rest/"
	DefaultScopes       = "openid,AdobeID,read_organizations,additional_info.projectedProductContext,additional_info.job_function"
)

// Config holds the configuration for an analytics client
type Config struct {
	OrgID        string
	ClientID     string
	ClientSecret string
	Scopes       []string

	TokenURL     string
	DiscoveryURL string
	Endpoint     string

	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        uint64

	// FixturePath seeds the simulation backend.
	FixturePath string

	// HTTPClient overrides the transport used for token and API calls.
	HTTPClient *http.Client
}

// BackendType represents the type of analytics backend
type BackendType string

const (
	// BackendAPI uses the real admin API
	BackendAPI BackendType = "api"
	// BackendSimulation keeps report suites in memory
	BackendSimulation BackendType = "simulation"
)

// ParseBackendType resolves a backend name from configuration.
func ParseBackendType(name string) (BackendType, error) {
	switch BackendType(name) {
	case BackendAPI, "":
		return BackendAPI, nil
	case BackendSimulation:
		return BackendSimulation, nil
	default:
		return "", fmt.Errorf("unknown backend %q (expected api or simulation)", name)
	}
}

// NewClient creates a new client based on the backend type
func NewClient(backendType BackendType, config *Config) (Client, error) {
	switch backendType {
	case BackendAPI:
		client, err := NewAPIClient(config)
		if err != nil {
			return nil, err
		}
		return client, nil
	case BackendSimulation:
		if config == nil || config.FixturePath == "" {
			return NewSimulation(nil), nil
		}
		sim, err := LoadSimulation(config.FixturePath)
		if err != nil {
			return nil, err
		}
		return sim, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q", backendType)
	}
}
