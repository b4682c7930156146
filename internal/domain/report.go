package domain

import (
	"time"
)

// SyncWindow is the inclusive date range to request from the upstream API
// for one API client. Derived from the fact table watermark, never
// persisted. Keyed by APIID because that is what the fact table watermark
// groups by: one credential pair, one watermark.
type SyncWindow struct {
	APIID    int64
	DateFrom time.Time
	DateTo   time.Time
}

// Empty reports whether the account is already caught up and no fetch is
// needed.
func (w SyncWindow) Empty() bool {
	return w.DateFrom.After(w.DateTo)
}

// Days returns the number of calendar days covered by the window.
func (w SyncWindow) Days() int {
	if w.Empty() {
		return 0
	}
	return int(w.DateTo.Sub(w.DateFrom).Hours()/24) + 1
}

// RawReportFile is one downloaded export file read back from the staging
// area. AccountID and APIID are recovered from the staging folder name.
type RawReportFile struct {
	AccountID int64
	APIID     int64
	Name      string
	Content   []byte
}

// CanonicalRow is the unified fact schema written to ozon_perf_statistics.
// Metric fields are pointers so an absent value stays NULL in the
// destination instead of turning into zero.
type CanonicalRow struct {
	APIID        int64
	AccountID    int64
	Date         time.Time
	CampaignID   *int64
	CampaignName *string
	Views        *int64
	Clicks       *int64
	CTR          *float64
	Expense      *float64
	AvgBid       *float64
	Orders       *int64
	Revenue      *float64
}
