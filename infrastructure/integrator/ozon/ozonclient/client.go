package ozonclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ozondomain "github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/domain"
	"github.com/vfg2006/ozon-performance-sync/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Client interface {
	Authenticate(ctx context.Context, clientID, clientSecret string) (string, error)
	ListCampaigns(ctx context.Context, token string) ([]ozondomain.Campaign, error)
	SubmitReport(ctx context.Context, token string, campaignIDs []string, dateFrom, dateTo time.Time) (string, error)
	ReportStatus(ctx context.Context, token, reportID string) (*ozondomain.ReportStatus, error)
	DownloadReport(ctx context.Context, token, reportID string) (string, []byte, error)
}

type OzonClient struct {
	Cfg        *config.Config
	httpClient *http.Client
}

func NewClient(cfg *config.Config) Client {
	return &OzonClient{
		Cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Ozon.Timeout,
		},
	}
}

// do performs one API request and retries on HTTP 429 with a fixed delay,
// up to the configured attempt limit. Every other status is returned to the
// caller as-is.
func (c *OzonClient) do(ctx context.Context, method, path, token string, payload interface{}) (int, []byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, errors.Wrap(err, "encoding request payload")
		}
	}

	delay := time.Duration(c.Cfg.Ozon.RequestDelaySeconds) * time.Second

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.Cfg.Ozon.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, nil, errors.Wrap(err, "building request")
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "calling %s %s", method, path)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, nil, errors.Wrap(err, "reading response body")
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp.StatusCode, respBody, nil
		}

		if attempt >= c.Cfg.Ozon.RequestAttempts {
			return resp.StatusCode, respBody, ErrRateLimited
		}

		logrus.Warnf("performance api returned 429 on %s, retrying in %s (attempt %d/%d)",
			path, delay, attempt, c.Cfg.Ozon.RequestAttempts)

		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
