// Package meta provides a client for the ads platform Graph API targeting search.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/campaign-cli/internal/resilience"
)

// Client defines the targeting search operations.
type Client interface {
	// SearchInterests looks up platform interests matching a free-text query.
	SearchInterests(ctx context.Context, query string) ([]Interest, error)
}

// Interest is one targeting-search hit.
type Interest struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	AudienceSizeLowerBound int64    `json:"audience_size_lower_bound"`
	AudienceSizeUpperBound int64    `json:"audience_size_upper_bound"`
	Path                   []string `json:"path"`
	Topic                  string   `json:"topic,omitempty"`
}

type searchResponse struct {
	Data  []Interest `json:"data"`
	Error *apiError  `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom Graph API host (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithAPIVersion pins the Graph API version path segment.
func WithAPIVersion(v string) Option {
	return func(c *httpClient) { c.version = v }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outbound requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *httpClient) { c.retry = p }
}

// WithSearchLimit sets how many hits each query returns.
func WithSearchLimit(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.limit = n
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	version string
	limit   int
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryPolicy
}

// NewClient creates a targeting search client authenticated with an access token.
func NewClient(accessToken string, opts ...Option) Client {
	retry := resilience.DefaultRetryPolicy()
	retry.OnRetry = resilience.LogRetries("meta", "search_interests")

	c := &httpClient{
		token:   accessToken,
		baseURL: "https://graph.facebook.com",
		version: "v21.0",
		limit:   5,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchInterests(ctx context.Context, query string) ([]Interest, error) {
	q := url.Values{}
	q.Set("type", "adinterest")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(c.limit))
	q.Set("access_token", c.token)
	reqURL := fmt.Sprintf("%s/%s/search?%s", c.baseURL, c.version, q.Encode())

	return resilience.Retry(ctx, c.retry, func(ctx context.Context) ([]Interest, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "meta: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "meta: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "meta: search request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "meta: read response body")
		}

		if resp.StatusCode != http.StatusOK {
			msg := string(body)
			var failed searchResponse
			if json.Unmarshal(body, &failed) == nil && failed.Error != nil {
				msg = failed.Error.Message
			}
			err := eris.Errorf("meta: search %q: status %d: %s", query, resp.StatusCode, msg)
			if resilience.RetryableStatus(resp.StatusCode) {
				return nil, resilience.Transient(err, resp.StatusCode)
			}
			return nil, err
		}

		var out searchResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, eris.Wrap(err, "meta: decode search response")
		}
		if out.Error != nil {
			return nil, eris.Errorf("meta: search %q: %s", query, out.Error.Message)
		}
		return out.Data, nil
	})
}
