// Package fullcontact calls the FullContact person enrichment API.
package fullcontact

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrich-cli/internal/resilience"
)

const defaultEndpoint = "https://api.fullcontact.com/v3/person.enrich"

// DefaultPackages is the data filter requested when none is configured.
var DefaultPackages = []string{"individual", "demographics", "location", "household"}

// Client matches a single email against the FullContact person graph.
type Client interface {
	Enrich(ctx context.Context, req EnrichRequest) (map[string]any, error)
}

// EnrichRequest is the request body for POST /v3/person.enrich.
type EnrichRequest struct {
	Email      string   `json:"email"`
	DataFilter []string `json:"dataFilter,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithEndpoint overrides the default enrich endpoint URL.
func WithEndpoint(url string) Option {
	return func(c *httpClient) {
		c.endpoint = url
	}
}

// WithPackages overrides the default data filter.
func WithPackages(packages []string) Option {
	return func(c *httpClient) {
		if len(packages) > 0 {
			c.packages = packages
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables the limiter.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

type httpClient struct {
	token    string
	endpoint string
	packages []string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a FullContact API client authenticated with a bearer token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:    token,
		endpoint: defaultEndpoint,
		packages: DefaultPackages,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Enrich(ctx context.Context, req EnrichRequest) (map[string]any, error) {
	if req.Email == "" {
		return nil, eris.New("fullcontact: email is required")
	}
	if len(req.DataFilter) == 0 {
		req.DataFilter = c.packages
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fullcontact: rate limit wait")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "fullcontact: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "fullcontact: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "fullcontact: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fullcontact: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resilience.HTTPStatusError("fullcontact", resp.StatusCode, respBody)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, eris.Errorf("fullcontact: empty response body (status %d)", resp.StatusCode)
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "fullcontact: unmarshal response")
	}
	if result == nil {
		return nil, eris.New("fullcontact: empty response body")
	}

	return result, nil
}
