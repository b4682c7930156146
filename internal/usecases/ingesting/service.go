package ingesting

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/repository"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
)

// ValidationError means a row reached the writer without its identity
// columns. That is a reconciliation bug, not a storage problem, so it is
// returned immediately and never retried.
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d rejected before insert: %s", e.Row, e.Reason)
}

type Writer struct {
	repo     repository.StatisticsRepository
	attempts int
	delay    time.Duration
}

func NewWriter(repo repository.StatisticsRepository, attempts int, delay time.Duration) *Writer {
	if attempts < 1 {
		attempts = 1
	}

	return &Writer{
		repo:     repo,
		attempts: attempts,
		delay:    delay,
	}
}

// Append validates and bulk-inserts a run's reconciled rows. Transient
// storage errors are retried with a fixed delay; schema-level errors and
// validation failures surface immediately. The whole batch lands in a
// single statement, so a failed run leaves nothing behind.
func (w *Writer) Append(ctx context.Context, rows []domain.CanonicalRow) error {
	if len(rows) == 0 {
		return nil
	}

	if err := validate(rows); err != nil {
		return err
	}

	var lastErr error

	for attempt := 1; attempt <= w.attempts; attempt++ {
		lastErr = w.repo.Append(rows)
		if lastErr == nil {
			return nil
		}

		if !transient(lastErr) {
			return lastErr
		}

		if attempt < w.attempts {
			logrus.WithError(lastErr).Warnf("statistics insert failed, retrying in %s (attempt %d/%d)",
				w.delay, attempt, w.attempts)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.delay):
			}
		}
	}

	return errors.Wrapf(lastErr, "statistics insert failed after %d attempts", w.attempts)
}

func validate(rows []domain.CanonicalRow) error {
	for i, row := range rows {
		switch {
		case row.APIID == 0:
			return &ValidationError{Row: i, Reason: "missing api id"}
		case row.AccountID == 0:
			return &ValidationError{Row: i, Reason: "missing account id"}
		case row.Date.IsZero():
			return &ValidationError{Row: i, Reason: "missing date"}
		}
	}

	return nil
}

// transient classifies storage errors. Connection and resource problems
// clear up on their own; schema mismatches never do.
func transient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", // connection exception
			"40", // transaction rollback (serialization, deadlock)
			"53", // insufficient resources
			"57", // operator intervention
			"58": // system error
			return true
		default:
			return false
		}
	}

	// Anything below the postgres protocol (dropped connections, timeouts)
	// is worth another attempt.
	return true
}
