package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

// APIClient implements the Client interface against the real admin API.
type APIClient struct {
	config     Config
	baseClient *http.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	company    *Company
	retryWait  time.Duration
}

// statusError is a non-2xx answer from the API.
type statusError struct {
	Method     string
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Method, e.StatusCode, e.Message)
}

// NewAPIClient creates a client for the real admin API. Credentials are only
// checked by Connect.
func NewAPIClient(config *Config) (*APIClient, error) {
	if config == nil {
		return nil, fmt.Errorf("analytics client config is required")
	}
	cfg := *config

	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = DefaultDiscoveryURL
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = strings.Split(DefaultScopes, ",")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	return &APIClient{
		config:     cfg,
		baseClient: base,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retryWait:  500 * time.Millisecond,
	}, nil
}

// Connect exchanges the client credentials for a token and resolves the
// company through the discovery endpoint. The first company wins.
func (c *APIClient) Connect(ctx context.Context) (*Company, error) {
	logger := otelzap.Ctx(ctx)

	if c.config.OrgID == "" || c.config.ClientID == "" || c.config.ClientSecret == "" {
		return nil, syncerr.Connection(nil, "OAuth credentials are not configured")
	}

	cc := clientcredentials.Config{
		ClientID:     c.config.ClientID,
		ClientSecret: c.config.ClientSecret,
		TokenURL:     c.config.TokenURL,
		Scopes:       c.config.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	// the token source outlives this call, so it must not inherit ctx's deadline
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.baseClient)
	source := oauth2.ReuseTokenSource(nil, cc.TokenSource(tokenCtx))
	if _, err := source.Token(); err != nil {
		return nil, syncerr.Connection(err, "token request to %s failed", c.config.TokenURL)
	}
	c.httpClient = oauth2.NewClient(tokenCtx, source)

	logger.Debug("Obtained access token", zap.String("org_id", c.config.OrgID))

	body, err := c.do(ctx, "discovery", http.MethodGet, strings.TrimRight(c.config.DiscoveryURL, "/")+"/discovery/me", nil)
	if err != nil {
		if errors.Is(err, syncerr.ErrConnection) {
			return nil, err
		}
		return nil, syncerr.Connection(err, "company discovery failed")
	}

	var discovery discoveryResponse
	if err := json.Unmarshal(body, &discovery); err != nil {
		return nil, syncerr.Connection(err, "decode discovery response")
	}

	for _, org := range discovery.IMSOrgs {
		if len(org.Companies) == 0 {
			continue
		}
		company := org.Companies[0]
		company.OrgID = org.IMSOrgID
		c.company = &company

		logger.Info("Connected to company",
			zap.String("company", company.Name),
			zap.String("global_company_id", company.GlobalCompanyID))
		return &company, nil
	}

	return nil, syncerr.Connection(nil, "no companies found for org %s", c.config.OrgID)
}

// Fetch reads one category of one report suite.
func (c *APIClient) Fetch(ctx context.Context, rsid string, category catalog.Category) ([]catalog.Item, error) {
	desc, err := catalog.Describe(category)
	if err != nil {
		return nil, syncerr.UnknownCategory(string(category))
	}

	result, err := c.call(ctx, desc.GetMethod, map[string]any{"rsid_list": []string{rsid}})
	if err != nil {
		if errors.Is(err, syncerr.ErrConnection) {
			return nil, err
		}
		return nil, syncerr.RemoteFetch(err, rsid, string(category))
	}

	records, err := extractRecords(result, desc, rsid)
	if err != nil {
		return nil, syncerr.RemoteFetch(err, rsid, string(category))
	}

	items, err := catalog.FromRecords(desc, records)
	if err != nil {
		return nil, syncerr.RemoteFetch(err, rsid, string(category))
	}

	otelzap.Ctx(ctx).Debug("Fetched category",
		zap.String("rsid", rsid),
		zap.String("category", string(category)),
		zap.Int("items", len(items)))

	return items, nil
}

// Write saves items for one category of one report suite.
func (c *APIClient) Write(ctx context.Context, rsid string, category catalog.Category, items []catalog.Item) error {
	desc, err := catalog.Describe(category)
	if err != nil {
		return syncerr.UnknownCategory(string(category))
	}

	payload := map[string]any{
		"rsid_list":     []string{rsid},
		desc.PayloadKey: catalog.ToRecords(desc, items),
	}

	result, err := c.call(ctx, desc.SaveMethod, payload)
	if err != nil {
		if errors.Is(err, syncerr.ErrConnection) {
			return err
		}
		return syncerr.RemoteWrite(err, rsid, string(category))
	}

	if !accepted(desc, result) {
		return syncerr.RemoteWrite(errors.Newf("unexpected response %v", result), rsid, string(category))
	}

	otelzap.Ctx(ctx).Debug("Saved category",
		zap.String("rsid", rsid),
		zap.String("category", string(category)),
		zap.Int("items", len(items)))

	return nil
}

// call invokes a 1.4 admin method and decodes its JSON result.
func (c *APIClient) call(ctx context.Context, method string, payload any) (any, error) {
	if c.company == nil || c.httpClient == nil {
		return nil, syncerr.Connection(nil, "not connected: call Connect first")
	}

	endpoint := c.config.Endpoint + "?method=" + url.QueryEscape(method)
	body, err := c.do(ctx, method, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}

	var result any
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", method)
	}
	return result, nil
}

// do performs one rate limited request, retrying 429 and 5xx answers with
// exponential backoff. 401 and 403 are connection errors and never retried.
func (c *APIClient) do(ctx context.Context, name, method, endpoint string, body any) ([]byte, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s request", name)
		}
	}

	client := c.httpClient
	if client == nil {
		client = c.baseClient
	}

	var out []byte
	attempt := 0

	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("x-api-key", c.config.ClientID)
		req.Header.Set("Accept", "application/json")
		if c.company != nil {
			req.Header.Set("x-proxy-global-company-id", c.company.GlobalCompanyID)
		}
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return backoff.Permanent(syncerr.Connection(err, "token refresh failed"))
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		otelzap.Ctx(ctx).Debug("API response",
			zap.String("call", name),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt))

		if resp.StatusCode < 300 {
			out = data
			return nil
		}

		statusErr := &statusError{Method: name, StatusCode: resp.StatusCode, Message: errorMessage(data)}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(syncerr.Connection(statusErr, "%s rejected the credentials", name))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return statusErr
		default:
			return backoff.Permanent(statusErr)
		}
	}

	if err := backoff.Retry(operation, c.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 2 * time.Minute

	retries := c.config.MaxRetries
	if retries == 0 {
		retries = 3
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

func errorMessage(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		if apiErr.Description != "" {
			return apiErr.Error + ": " + apiErr.Description
		}
		return apiErr.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// extractRecords finds the entry for rsid in a Get response and returns its
// item list. A missing list means the category is empty.
func extractRecords(result any, desc catalog.Descriptor, rsid string) ([]any, error) {
	entries, ok := result.([]any)
	if !ok {
		return nil, errors.Newf("expected a list of report suites, got %T", result)
	}
	if len(entries) == 0 {
		return []any{}, nil
	}

	var entry map[string]any
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if entry == nil {
			entry = m
		}
		if m["rsid"] == rsid {
			entry = m
			break
		}
	}
	if entry == nil {
		return nil, errors.New("response holds no report suite entry")
	}

	switch v := entry[desc.ResponseKey].(type) {
	case nil:
		return []any{}, nil
	case []any:
		return v, nil
	case map[string]any:
		return []any{v}, nil
	default:
		return nil, errors.Newf("unexpected %s value of type %T", desc.ResponseKey, v)
	}
}

func accepted(desc catalog.Descriptor, result any) bool {
	return slices.Contains(desc.SuccessValues, catalog.FormatValue(result))
}
