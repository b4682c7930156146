package watermarking

import (
	"time"

	"github.com/vfg2006/ozon-performance-sync/internal/domain"
)

// ComputeWindow decides the date range that still needs to be fetched for
// one API client. maxDates is the watermark snapshot taken once at the
// start of the run (max(date) per api_id in the fact table).
//
// Clients with history resume the day after their watermark; clients
// without history (or with a missing entry, which is the same thing) fall
// back to the default lookback. The upper bound is always yesterday because
// upstream data for the current day is incomplete.
func ComputeWindow(
	apiID int64,
	maxDates map[int64]time.Time,
	lookbackDays int,
	today time.Time,
) domain.SyncWindow {
	today = truncateToDay(today)

	window := domain.SyncWindow{
		APIID:  apiID,
		DateTo: today.AddDate(0, 0, -1),
	}

	if maxDate, ok := maxDates[apiID]; ok && !maxDate.IsZero() {
		window.DateFrom = truncateToDay(maxDate).AddDate(0, 0, 1)
	} else {
		window.DateFrom = today.AddDate(0, 0, -lookbackDays)
	}

	return window
}

// SplitWindow chunks a window into sub-windows of at most maxDays calendar
// days each, preserving order. The last chunk is clamped to DateTo.
func SplitWindow(window domain.SyncWindow, maxDays int) []domain.SyncWindow {
	if window.Empty() {
		return nil
	}

	if maxDays <= 0 || window.Days() <= maxDays {
		return []domain.SyncWindow{window}
	}

	chunks := make([]domain.SyncWindow, 0, window.Days()/maxDays+1)
	for from := window.DateFrom; !from.After(window.DateTo); from = from.AddDate(0, 0, maxDays) {
		to := from.AddDate(0, 0, maxDays-1)
		if to.After(window.DateTo) {
			to = window.DateTo
		}

		chunks = append(chunks, domain.SyncWindow{
			APIID:    window.APIID,
			DateFrom: from,
			DateTo:   to,
		})
	}

	return chunks
}

// truncateToDay normalizes an instant to midnight UTC. The watermark
// snapshot arrives in UTC (lib/pq scans DATE columns as midnight UTC)
// while the run clock is in the host zone; arithmetic over mixed
// locations shifts window boundaries by the zone offset, so both sides
// are rebuilt in one location before comparing.
func truncateToDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
