package ozonclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRateLimited is returned after the configured number of retries against
// HTTP 429 has been exhausted.
var ErrRateLimited = errors.New("rate limited by the performance api")

// AuthError means the account's credentials were rejected. The account is
// skipped for the rest of the run; other accounts are unaffected.
type AuthError struct {
	ClientID   string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for client %s (status %d): %s", e.ClientID, e.StatusCode, e.Message)
}

// IsAuthError reports whether err, at any level of wrapping, is a rejected
// credential.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ReportNeverReadyError means the poll ceiling was reached before the report
// job finished. The report may still complete upstream; we just stop waiting.
type ReportNeverReadyError struct {
	ReportID string
	Attempts int
}

func (e *ReportNeverReadyError) Error() string {
	return fmt.Sprintf("report %s not ready after %d status checks", e.ReportID, e.Attempts)
}
