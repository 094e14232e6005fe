package nse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/httpclient"
	"github.com/Checker-Finance/sme-deals/internal/rate"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// NSE session cookies go stale well within a long-running process, so a
// successful warm-up is only trusted for this long before the next Fetch
// re-warms.
const warmUpTTL = 30 * time.Minute

// Client wraps HTTP communication with the NSE website API and archive.
// NSE rejects cookie-less API calls, so the client keeps a cookie jar and
// warms it up with a homepage request before the first API call.
type Client struct {
	logger     *zap.Logger
	baseURL    string
	archiveURL string
	http       *http.Client
	exec       *httpclient.Executor

	warmMu   sync.Mutex
	warmedAt time.Time
	warmTTL  time.Duration
}

// NewClient constructs a new NSE HTTP client instance.
func NewClient(logger *zap.Logger, baseURL, archiveURL string, rateMgr *rate.Manager, timeout time.Duration) *Client {
	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: timeout, Jar: jar}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "nse", func(status int, body []byte) error {
		logger.Warn("nse.non_200",
			zap.Int("status", status),
			zap.Int("body_len", len(body)))
		return fmt.Errorf("nse returned %d", status)
	})
	return &Client{
		logger:     logger,
		baseURL:    baseURL,
		archiveURL: archiveURL,
		http:       httpClient,
		exec:       exec,
		warmTTL:    warmUpTTL,
	}
}

// warmUp primes the cookie jar. A recent successful warm-up is reused; a
// failed one is never cached, so the next Fetch retries once the endpoint
// recovers instead of pinning the source down for the process lifetime.
func (c *Client) warmUp(ctx context.Context) error {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()

	if !c.warmedAt.IsZero() && time.Since(c.warmedAt) < c.warmTTL {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return err
	}
	setBrowserHeaders(req, c.baseURL)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nse warm-up: %w", err)
	}
	_ = resp.Body.Close()

	c.warmedAt = time.Now()
	c.logger.Debug("nse.warmed_up", zap.Int("status", resp.StatusCode))
	return nil
}

// FetchDeals retrieves the block or bulk deal disclosures for the window.
// GET /api/historicalOR/{block|bulk}-deals?from=dd-mm-yyyy&to=dd-mm-yyyy
func (c *Client) FetchDeals(ctx context.Context, dealType model.DealType, from, to time.Time) (*dealsEnvelope, error) {
	if err := c.warmUp(ctx); err != nil {
		return nil, err
	}

	path := "/api/historicalOR/bulk-deals"
	if dealType == model.DealBlock {
		path = "/api/historicalOR/block-deals"
	}
	url := fmt.Sprintf("%s%s?from=%s&to=%s",
		c.baseURL, path, from.Format("02-01-2006"), to.Format("02-01-2006"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	setBrowserHeaders(req, c.baseURL)

	var env dealsEnvelope
	if err := c.exec.DoJSON(ctx, req, "nse_api", &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// FetchSymbolMaster retrieves the equity symbol master CSV from the NSE
// archive. SME listings carry the SM/ST/SZ series.
func (c *Client) FetchSymbolMaster(ctx context.Context) (string, error) {
	url := c.archiveURL + "/content/equities/EQUITY_L.csv"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	return c.exec.DoText(ctx, req, "nse_archive")
}

func setBrowserHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json,text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", referer+"/")
}
