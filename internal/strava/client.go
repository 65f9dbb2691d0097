package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/joshdurbin/strava-dashboard/internal/logging"
)

const (
	baseURL = "https://www.strava.com/api/v3"
	perPage = 200
)

// Default retry settings
const (
	defaultMaxRetries     = 5
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 5 * time.Minute
)

// ErrRateLimited is returned when Strava still answers 429 after all retries
var ErrRateLimited = errors.New("rate limited")

// ErrUnauthorized is returned when the access token is rejected
var ErrUnauthorized = errors.New("access token rejected")

// StatusError is any other non-200 answer
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.Path)
}

// Athlete is the authenticated athlete's profile
type Athlete struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Firstname     string `json:"firstname"`
	Lastname      string `json:"lastname"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Profile       string `json:"profile"`
	ProfileMedium string `json:"profile_medium"`
}

// FullName joins first and last name
func (a Athlete) FullName() string {
	return strings.TrimSpace(a.Firstname + " " + a.Lastname)
}

// PageResult describes one fetched page of activities
type PageResult struct {
	Page         int
	Count        int
	TotalFetched int
	RateLimit    RateLimitInfo
}

// ProgressCallback is called after each page is fetched
type ProgressCallback func(result PageResult)

// RetryConfig holds retry/backoff settings
type RetryConfig struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: defaultMaxRetries,
		MinWait:    defaultInitialBackoff,
		MaxWait:    defaultMaxBackoff,
	}
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another API root (tests)
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRetryConfig overrides the retry settings
func WithRetryConfig(cfg RetryConfig) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = cfg.MaxRetries
		c.httpClient.RetryWaitMin = cfg.MinWait
		c.httpClient.RetryWaitMax = cfg.MaxWait
	}
}

// Client reads athlete data from the Strava API, retrying rate limited and
// failed requests
type Client struct {
	httpClient  *retryablehttp.Client
	accessToken string
	baseURL     string

	rateMu    sync.RWMutex
	rateLimit RateLimitInfo
}

// NewClient creates a client authenticated with accessToken
func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		httpClient:  newRetryableClient(DefaultRetryConfig()),
		accessToken: accessToken,
		baseURL:     baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AccessToken returns the token the client authenticates with
func (c *Client) AccessToken() string {
	return c.accessToken
}

func newRetryableClient(cfg RetryConfig) *retryablehttp.Client {
	log := logging.Logger
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = cfg.MinWait
	client.RetryWaitMax = cfg.MaxWait
	client.Logger = &logging.LeveledLogger{}

	// retry connection errors, 429 and 5xx; any other 4xx is final
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, nil
	}

	client.Backoff = func(minWait, maxWait time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					wait := time.Duration(seconds) * time.Second
					log.Info().Dur("wait", wait).Int("attempt", attemptNum).Msg("rate limited, honoring Retry-After")
					return wait
				}
			}
			wait := timeUntilNext15MinWindow(time.Now())
			log.Info().Dur("wait", wait).Int("attempt", attemptNum).Msg("rate limited, waiting for 15-minute window reset")
			return wait
		}

		wait := minWait * time.Duration(1<<uint(attemptNum))
		if wait > maxWait {
			wait = maxWait
		}
		log.Info().Dur("wait", wait).Int("attempt", attemptNum).Msg("backing off before retry")
		return wait
	}

	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, retry int) {
		if retry > 0 {
			log.Info().Str("url", req.URL.Path).Int("attempt", retry+1).Msg("retrying request")
		}
		if logging.IsTraceEnabled() {
			log.Debug().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Str("headers", formatHeaders(req.Header)).
				Msg("request headers")
		}
	}

	client.ResponseLogHook = func(_ retryablehttp.Logger, resp *http.Response) {
		if logging.IsTraceEnabled() {
			log.Debug().
				Int("status", resp.StatusCode).
				Str("url", resp.Request.URL.Path).
				Str("headers", formatHeaders(resp.Header)).
				Msg("response headers")
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			info := parseRateLimitHeaders(resp.Header, time.Now())
			log.Warn().
				Str("url", resp.Request.URL.Path).
				Str("15min_usage", fmt.Sprintf("%d/%d", info.Usage15Min, info.Limit15Min)).
				Str("daily_usage", fmt.Sprintf("%d/%d", info.UsageDaily, info.LimitDaily)).
				Dur("wait_for_reset", info.TimeUntil15MinReset).
				Msg("rate limited by API")
		}
	}

	return client
}

// GetRateLimit returns the last seen quota with reset times relative to now
func (c *Client) GetRateLimit() RateLimitInfo {
	c.rateMu.RLock()
	info := c.rateLimit
	c.rateMu.RUnlock()

	info.refresh(time.Now())
	return info
}

// WaitForRateLimit blocks until the quota allows more requests or ctx is done
func (c *Client) WaitForRateLimit(ctx context.Context) error {
	info := c.GetRateLimit()
	if info.RecommendedWait <= 0 {
		return nil
	}

	logging.Logger.Info().
		Dur("wait", info.RecommendedWait).
		Str("15min_usage", fmt.Sprintf("%d/%d", info.Usage15Min, info.Limit15Min)).
		Str("daily_usage", fmt.Sprintf("%d/%d", info.UsageDaily, info.LimitDaily)).
		Msg("waiting for rate limit window to reset")

	timer := time.NewTimer(info.RecommendedWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) updateRateLimit(resp *http.Response) RateLimitInfo {
	info := parseRateLimitHeaders(resp.Header, time.Now())
	if resp.StatusCode == http.StatusTooManyRequests {
		info.IsRateLimited = true
	}
	c.rateMu.Lock()
	c.rateLimit = info
	c.rateMu.Unlock()
	return info
}

// getJSON issues an authenticated GET and decodes the body into dest.
// Numbers are decoded as json.Number so activity ids keep full precision.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) (RateLimitInfo, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return RateLimitInfo{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RateLimitInfo{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	info := c.updateRateLimit(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return info, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return info, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return info, &StatusError{Code: resp.StatusCode, Path: path}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return info, fmt.Errorf("decoding response: %w", err)
	}
	return info, nil
}

// GetAthlete fetches the authenticated athlete
func (c *Client) GetAthlete(ctx context.Context) (Athlete, error) {
	var athlete Athlete
	if _, err := c.getJSON(ctx, "/athlete", nil, &athlete); err != nil {
		return Athlete{}, err
	}
	return athlete, nil
}

// FetchActivities pages through /athlete/activities and returns every
// activity started after the given instant as a loosely typed record. A zero
// after fetches the whole history.
func (c *Client) FetchActivities(ctx context.Context, after time.Time, progress ProgressCallback) ([]map[string]any, error) {
	var all []map[string]any

	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(perPage))
		if !after.IsZero() {
			query.Set("after", strconv.FormatInt(after.Unix(), 10))
		}

		var batch []map[string]any
		info, err := c.getJSON(ctx, "/athlete/activities", query, &batch)
		if err != nil {
			return all, err
		}

		all = append(all, batch...)
		if progress != nil {
			progress(PageResult{Page: page, Count: len(batch), TotalFetched: len(all), RateLimit: info})
		}

		logging.Debug("fetched activity page", "page", page, "count", len(batch), "total", len(all))

		if len(batch) == 0 {
			return all, nil
		}
	}
}

// formatHeaders formats HTTP headers for logging, redacting credentials
func formatHeaders(headers http.Header) string {
	if len(headers) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(headers[k], ", ")
		switch strings.ToLower(k) {
		case "authorization", "cookie", "set-cookie":
			value = "[REDACTED]"
		}
		parts = append(parts, fmt.Sprintf("%s: %q", k, value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
