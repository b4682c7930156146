package ozonclient

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	ozondomain "github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/domain"
)

const dateParamFormat = "2006-01-02"

// SubmitReport asks the API to generate a statistics report for the given
// campaigns over an inclusive date range and returns the job handle.
func (c *OzonClient) SubmitReport(ctx context.Context, token string, campaignIDs []string, dateFrom, dateTo time.Time) (string, error) {
	payload := ozondomain.StatisticsRequest{
		Campaigns: campaignIDs,
		DateFrom:  dateFrom.Format(dateParamFormat),
		DateTo:    dateTo.Format(dateParamFormat),
		GroupBy:   "DATE",
	}

	status, body, err := c.do(ctx, http.MethodPost, "/api/client/statistics", token, payload)
	if err != nil {
		return "", err
	}

	if status != http.StatusOK {
		return "", errors.Errorf("statistics endpoint returned status %d: %s", status, body)
	}

	var submitted ozondomain.StatisticsSubmitted
	if err := json.Unmarshal(body, &submitted); err != nil {
		return "", errors.Wrap(err, "decoding statistics response")
	}

	if submitted.UUID == "" {
		return "", errors.New("statistics endpoint returned no report handle")
	}

	return submitted.UUID, nil
}

// ReportStatus fetches the current state of a report generation job.
func (c *OzonClient) ReportStatus(ctx context.Context, token, reportID string) (*ozondomain.ReportStatus, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/client/statistics/"+reportID, token, nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, errors.Errorf("report status endpoint returned status %d: %s", status, body)
	}

	var report ozondomain.ReportStatus
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, errors.Wrap(err, "decoding report status")
	}

	return &report, nil
}

// zipMagic is the signature every zip archive starts with.
var zipMagic = []byte("PK")

// DownloadReport fetches a finished report. Multi-campaign reports arrive
// as a zip archive, single-campaign ones as plain csv; the payload itself
// tells which, so the returned filename carries the right extension.
func (c *OzonClient) DownloadReport(ctx context.Context, token, reportID string) (string, []byte, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/client/statistics/report?UUID="+reportID, token, nil)
	if err != nil {
		return "", nil, err
	}

	if status != http.StatusOK {
		return "", nil, errors.Errorf("report download returned status %d", status)
	}

	name := reportID + ".csv"
	if bytes.HasPrefix(body, zipMagic) {
		name = reportID + ".zip"
	}

	return name, body, nil
}
