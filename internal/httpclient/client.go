// -----------------------------------------------------------------------
// HTTP Client - rate-limited fetch client for SEC endpoints
// -----------------------------------------------------------------------

package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"golang.org/x/time/rate"
)

// Client fetches feeds and filing documents from SEC endpoints. EDGAR's
// fair-access policy requires a descriptive User-Agent and caps request
// rates, so every fetch goes through one shared limiter.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	userAgent   string
	maxBodySize int64
	logger      arbor.ILogger
}

// NewClient creates a fetch client from SEC config
func NewClient(config *common.SECConfig, logger arbor.ILogger) (*Client, error) {
	timeout, err := time.ParseDuration(config.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid sec request timeout '%s': %w", config.RequestTimeout, err)
	}

	return &Client{
		http:        &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
		userAgent:   config.UserAgent,
		maxBodySize: int64(config.MaxBodySize),
		logger:      logger,
	}, nil
}

// Fetch retrieves the URL's body, rate-limited and size-capped. Failures
// here are external-dependency failures: the caller retries them through
// the job attempt mechanism, not inline.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed for %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body from %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, fmt.Errorf("response from %s exceeds size limit of %d bytes", url, c.maxBodySize)
	}

	c.logger.Trace().
		Str("url", url).
		Int("bytes", len(body)).
		Dur("duration", time.Since(started)).
		Msg("Fetched document")

	return body, nil
}
