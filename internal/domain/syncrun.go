package domain

// AccountSyncResult is the per-account outcome of the fetch phase. Err is
// the isolation boundary: a failed account contributes zero files without
// touching any other account, and its watermark is left where it was.
type AccountSyncResult struct {
	AccountID int64  `json:"account_id"`
	APIID     int64  `json:"api_id"`
	Files     int    `json:"files"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Err       error  `json:"-"`
}

// RunSummary aggregates one full sync run for logging and the status
// endpoint.
type RunSummary struct {
	RunID          string              `json:"run_id"`
	AccountsTotal  int                 `json:"accounts_total"`
	AccountsSynced int                 `json:"accounts_synced"`
	AccountsFailed int                 `json:"accounts_failed"`
	FilesFetched   int                 `json:"files_fetched"`
	FilesSkipped   int                 `json:"files_skipped"`
	RowsSkipped    int                 `json:"rows_skipped"`
	RowsIngested   int                 `json:"rows_ingested"`
	IngestOK       bool                `json:"ingest_ok"`
	Accounts       []AccountSyncResult `json:"accounts"`
}
