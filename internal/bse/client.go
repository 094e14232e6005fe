package bse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/httpclient"
	"github.com/Checker-Finance/sme-deals/internal/rate"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

const refererURL = "https://www.bseindia.com/"

// Client wraps HTTP communication with the BSE India API. BSE requires a
// browser User-Agent and its own site as Referer or it serves empty bodies.
type Client struct {
	logger *zap.Logger
	apiURL string
	exec   *httpclient.Executor
}

// NewClient constructs a new BSE HTTP client instance.
func NewClient(logger *zap.Logger, apiURL string, rateMgr *rate.Manager, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "bse", func(status int, body []byte) error {
		logger.Warn("bse.non_200",
			zap.Int("status", status),
			zap.Int("body_len", len(body)))
		return fmt.Errorf("bse returned %d", status)
	})
	return &Client{
		logger: logger,
		apiURL: apiURL,
		exec:   exec,
	}
}

// FetchDeals retrieves one day's block or bulk deal disclosures. The BSE
// endpoint is day-wise; callers iterate the lookback range.
// GET /BseIndiaAPI/api/MktWatchBulkDealData/w?strType={B|BL}&strDate=yyyymmdd
func (c *Client) FetchDeals(ctx context.Context, dealType model.DealType, day time.Time) (*tableEnvelope, error) {
	strType := "B"
	if dealType == model.DealBlock {
		strType = "BL"
	}
	url := fmt.Sprintf("%s/BseIndiaAPI/api/MktWatchBulkDealData/w?strType=%s&strDate=%s",
		c.apiURL, strType, day.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req)

	var env tableEnvelope
	if err := c.exec.DoJSON(ctx, req, "bse_api", &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// FetchSMEScrips retrieves the SME segment scrip list.
// GET /BseIndiaAPI/api/ListofScripData/w?segment=SME
func (c *Client) FetchSMEScrips(ctx context.Context) (*tableEnvelope, error) {
	url := c.apiURL + "/BseIndiaAPI/api/ListofScripData/w?group=&Scripcode=&industry=&segment=SME"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req)

	var env tableEnvelope
	if err := c.exec.DoJSON(ctx, req, "bse_api", &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", refererURL)
}
