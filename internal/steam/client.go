// Package steam provides typed, rate-limit-aware access to the upstream
// catalog, store details, reviews and news endpoints.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultStoreBaseURL = "https://store.steampowered.com"
	defaultAPIBaseURL   = "https://api.steampowered.com"

	// Pre-request jitter bounds; the upstream throttles bursts hard.
	jitterMinMs = 15
	jitterMaxMs = 45

	// Backoff when a 429 arrives without a usable Retry-After header.
	defaultThrottleDelay = 5 * time.Second

	userAgent = "gamesearch/1.0 (+https://github.com/raphaelgruber/gamesearch)"
)

// ErrThrottled signals that the upstream returned 429 and the client already
// slept out the advertised backoff. Callers should retry the identical
// request (same cursor) rather than advance.
var ErrThrottled = errors.New("upstream throttled request")

// ErrMalformedPayload signals a payload that parsed but misses required
// structure. Callers skip the item and count the condition.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// StatusError is a non-2xx, non-429 upstream response. Callers decide
// whether to skip the item or abort the run.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d for %s", e.Code, e.URL)
}

// Config holds client endpoints and timing knobs.
type Config struct {
	StoreBaseURL string
	APIBaseURL   string
	Timeout      time.Duration
}

// Client talks to the upstream source API. All request methods honor ctx
// and insert a small random delay before hitting the network.
type Client struct {
	http          *http.Client
	storeBase     string
	apiBase       string
	throttleDelay time.Duration
	logger        *slog.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a source client. Zero-value config fields fall back to
// production defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.StoreBaseURL == "" {
		cfg.StoreBaseURL = defaultStoreBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:          &http.Client{Timeout: cfg.Timeout},
		storeBase:     cfg.StoreBaseURL,
		apiBase:       cfg.APIBaseURL,
		throttleDelay: defaultThrottleDelay,
		logger:        logger,
		sleep:         sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) jitter(ctx context.Context) error {
	d := time.Duration(jitterMinMs+rand.IntN(jitterMaxMs-jitterMinMs)) * time.Millisecond
	return c.sleep(ctx, d)
}

// get performs one GET with jitter and 429 handling. On 429 it sleeps the
// advertised (or default) backoff and returns ErrThrottled.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.jitter(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		delay := c.throttleDelay
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			delay = d
		}
		// Small jitter on top so parallel workers don't resume in lockstep.
		delay += time.Duration(rand.IntN(1000)) * time.Millisecond
		c.logger.Warn("throttled by upstream", "url", rawURL, "backoff", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		return nil, ErrThrottled
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// parseRetryAfter accepts both the seconds-delta and the absolute HTTP-date
// forms of the header.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, false
	}
	return 0, false
}

// ListApps fetches the full catalog of (id, name) pairs.
func (c *Client) ListApps(ctx context.Context) ([]App, error) {
	body, err := c.get(ctx, c.apiBase+"/ISteamApps/GetAppList/v2/")
	if err != nil {
		return nil, err
	}
	var payload appListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: app list: %v", ErrMalformedPayload, err)
	}
	return payload.AppList.Apps, nil
}

// AppDetails fetches the store details snapshot for one item.
func (c *Client) AppDetails(ctx context.Context, itemID int64) (*DetailsResult, error) {
	u := fmt.Sprintf("%s/api/appdetails?appids=%d&cc=us&l=en", c.storeBase, itemID)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var outer map[string]json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("%w: details for item %d: %v (payload %q)",
			ErrMalformedPayload, itemID, err, excerpt(body))
	}
	raw, ok := outer[itemKey(itemID)]
	if !ok {
		return nil, fmt.Errorf("%w: details response missing item %d (payload %q)",
			ErrMalformedPayload, itemID, excerpt(body))
	}

	var env detailsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: details envelope for item %d: %v", ErrMalformedPayload, itemID, err)
	}

	result := &DetailsResult{Raw: raw, Success: bool(env.Success)}
	if len(env.Data) > 0 {
		var data AppDetails
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: details data for item %d: %v", ErrMalformedPayload, itemID, err)
		}
		result.Data = &data
	}
	return result, nil
}

// FetchReviewsPage fetches one cursor page of reviews. The upstream repeats
// the cursor when exhausted; callers must detect a non-advancing cursor.
func (c *Client) FetchReviewsPage(ctx context.Context, itemID int64, cursor string, pageSize int) (*ReviewsPage, error) {
	u := fmt.Sprintf("%s/appreviews/%d?json=1&filter=recent&language=all&purchase_type=all&num_per_page=%d&cursor=%s",
		c.storeBase, itemID, pageSize, url.QueryEscape(cursor))
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var page ReviewsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("%w: reviews page for item %d: %v (payload %q)",
			ErrMalformedPayload, itemID, err, excerpt(body))
	}
	return &page, nil
}

// FetchNews fetches up to count dated feed items, optionally filtered by tag.
func (c *Client) FetchNews(ctx context.Context, itemID int64, count int, tagFilter string) (*NewsResult, error) {
	u := fmt.Sprintf("%s/ISteamNews/GetNewsForApp/v2/?appid=%d&count=%d", c.apiBase, itemID, count)
	if tagFilter != "" {
		u += "&tags=" + url.QueryEscape(tagFilter)
	}
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var payload newsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: news for item %d: %v (payload %q)",
			ErrMalformedPayload, itemID, err, excerpt(body))
	}
	return &NewsResult{Raw: body, Items: payload.AppNews.Items}, nil
}

// excerpt truncates a raw payload for diagnostics.
func excerpt(body []byte) string {
	const max = 300
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
