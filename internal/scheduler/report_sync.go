package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/ozonclient"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/repository"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/staging"
	"github.com/vfg2006/ozon-performance-sync/internal/config"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
	"github.com/vfg2006/ozon-performance-sync/internal/usecases/ingesting"
	"github.com/vfg2006/ozon-performance-sync/internal/usecases/reconciling"
	"github.com/vfg2006/ozon-performance-sync/internal/usecases/watermarking"
)

const runIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ReportSyncConfig holds the scheduling knobs of the statistics sync job.
type ReportSyncConfig struct {
	CronSchedule      string
	LookbackDays      int
	MaxConcurrentJobs int
	SyncEnabled       bool
	DeleteFiles       bool
}

// ReportSyncService runs the full statistics pipeline on a schedule: fetch
// per-account reports from the performance API, stage them on disk,
// reconcile them into canonical rows and append them to the fact table.
type ReportSyncService struct {
	scheduler           *gocron.Scheduler
	config              ReportSyncConfig
	appConfig           *config.Config
	accountRepo         repository.AccountRepository
	statsRepo           repository.StatisticsRepository
	client              ozonclient.Client
	staging             *staging.Store
	writer              *ingesting.Writer
	syncMutex sync.Mutex
	// Guarded by syncMutex: the run slot and the status surface.
	syncRunning         bool
	lastSyncStartedAt   time.Time
	lastSyncCompletedAt time.Time
	lastRunSummary      *domain.RunSummary
	appCtx              context.Context
}

func NewReportSyncService(
	accountRepo repository.AccountRepository,
	statsRepo repository.StatisticsRepository,
	client ozonclient.Client,
	store *staging.Store,
	writer *ingesting.Writer,
	appConfig *config.Config,
) *ReportSyncService {
	syncConfig := ReportSyncConfig{
		CronSchedule:      appConfig.ReportSync.CronSchedule,
		LookbackDays:      appConfig.ReportSync.LookbackDays,
		MaxConcurrentJobs: appConfig.ReportSync.MaxConcurrentJobs,
		SyncEnabled:       appConfig.ReportSync.Enabled,
		DeleteFiles:       appConfig.ReportSync.DeleteFiles,
	}

	scheduler := gocron.NewScheduler(time.Local)

	logrus.WithFields(logrus.Fields{
		"cron_schedule":       syncConfig.CronSchedule,
		"lookback_days":       syncConfig.LookbackDays,
		"max_concurrent_jobs": syncConfig.MaxConcurrentJobs,
		"sync_enabled":        syncConfig.SyncEnabled,
		"delete_files":        syncConfig.DeleteFiles,
	}).Info("report sync scheduler configuration loaded")

	return &ReportSyncService{
		scheduler:   scheduler,
		config:      syncConfig,
		appConfig:   appConfig,
		accountRepo: accountRepo,
		statsRepo:   statsRepo,
		client:      client,
		staging:     store,
		writer:      writer,
		syncRunning: false,
	}
}

// Start schedules the sync job and stops the scheduler when ctx is done.
// The context is kept so manually triggered runs stop with it too.
func (s *ReportSyncService) Start(ctx context.Context) error {
	s.syncMutex.Lock()
	s.appCtx = ctx
	s.syncMutex.Unlock()

	if !s.config.SyncEnabled {
		logrus.Info("report sync disabled by configuration")
		return nil
	}

	logrus.WithField("cron", s.config.CronSchedule).Info("starting report sync scheduler")

	_, err := s.scheduler.Cron(s.config.CronSchedule).Do(func() {
		s.syncAllReports(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule report sync: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		logrus.Info("stopping report sync scheduler")
		s.scheduler.Stop()
	}()

	return nil
}

// syncAllReports runs one full pipeline pass. Overlapping runs are refused:
// a second trigger while a run is in flight is a no-op.
func (s *ReportSyncService) syncAllReports(ctx context.Context) {
	if !s.beginRun() {
		logrus.Info("report sync already in progress, skipping")
		return
	}

	s.runSync(ctx)
}

// beginRun claims the run slot. Checking and marking under one lock hold
// keeps two concurrent triggers from both being accepted.
func (s *ReportSyncService) beginRun() bool {
	s.syncMutex.Lock()
	defer s.syncMutex.Unlock()

	if s.syncRunning {
		return false
	}

	s.syncRunning = true
	s.lastSyncStartedAt = time.Now()
	return true
}

// runSync executes one pass for a caller that already claimed the run slot.
func (s *ReportSyncService) runSync(ctx context.Context) {
	summary := s.syncAllReportsWithDate(ctx, time.Now())

	s.syncMutex.Lock()
	s.lastRunSummary = summary
	s.lastSyncCompletedAt = time.Now()
	s.syncRunning = false
	s.syncMutex.Unlock()
}

// syncAllReportsWithDate is the run body with the clock injected, so tests
// can pin "today".
func (s *ReportSyncService) syncAllReportsWithDate(ctx context.Context, today time.Time) *domain.RunSummary {
	runID, _ := gonanoid.Generate(runIDAlphabet, 8)
	log := logrus.WithField("run_id", runID)

	startTime := time.Now()
	log.Info("starting report sync run")

	summary := &domain.RunSummary{RunID: runID}

	accounts, err := s.accountRepo.ListAccounts()
	if err != nil {
		log.WithError(err).Error("failed to list accounts, aborting run")
		return summary
	}

	summary.AccountsTotal = len(accounts)
	if len(accounts) == 0 {
		log.Info("no accounts with performance credentials found")
		return summary
	}

	// One watermark snapshot for the whole run. Accounts that fail keep
	// their old watermark and are re-fetched from the same point next run.
	maxDates, err := s.statsRepo.MaxDatePerAPIClient()
	if err != nil {
		log.WithError(err).Error("failed to read watermarks, aborting run")
		return summary
	}

	summary.Accounts = s.fetchAllAccounts(ctx, log, accounts, maxDates, today)

	for _, result := range summary.Accounts {
		switch {
		case result.Err != nil:
			summary.AccountsFailed++
		default:
			summary.AccountsSynced++
			summary.FilesFetched += result.Files
		}
	}

	s.ingestStagedFiles(ctx, log, summary)

	if s.config.DeleteFiles {
		s.staging.Cleanup()
	}

	log.WithFields(logrus.Fields{
		"duration":        time.Since(startTime).String(),
		"accounts_total":  summary.AccountsTotal,
		"accounts_synced": summary.AccountsSynced,
		"accounts_failed": summary.AccountsFailed,
		"files_fetched":   summary.FilesFetched,
		"files_skipped":   summary.FilesSkipped,
		"rows_ingested":   summary.RowsIngested,
		"rows_skipped":    summary.RowsSkipped,
		"ingest_ok":       summary.IngestOK,
	}).Info("report sync run finished")

	return summary
}

// fetchAllAccounts downloads reports for every account through a bounded
// worker pool. Failures are isolated per account.
func (s *ReportSyncService) fetchAllAccounts(
	ctx context.Context,
	log *logrus.Entry,
	accounts []domain.Account,
	maxDates map[int64]time.Time,
	today time.Time,
) []domain.AccountSyncResult {
	semaphore := make(chan struct{}, s.config.MaxConcurrentJobs)
	var wg sync.WaitGroup

	results := make([]domain.AccountSyncResult, len(accounts))

	for i, account := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, acc domain.Account) {
			defer func() {
				<-semaphore
				wg.Done()
			}()

			results[i] = s.syncAccount(ctx, log, acc, maxDates, today)
		}(i, account)
	}

	wg.Wait()

	return results
}

// syncAccount fetches every missing report for one account.
func (s *ReportSyncService) syncAccount(
	ctx context.Context,
	log *logrus.Entry,
	acc domain.Account,
	maxDates map[int64]time.Time,
	today time.Time,
) domain.AccountSyncResult {
	result := domain.AccountSyncResult{AccountID: acc.ID, APIID: acc.APIID}

	window := watermarking.ComputeWindow(acc.APIID, maxDates, s.config.LookbackDays, today)
	if window.Empty() {
		log.WithFields(logrus.Fields{
			"account_id": acc.ID,
			"api_id":     acc.APIID,
		}).Info("account already up to date, skipping")

		result.Skipped = true
		result.Reason = "up to date"
		return result
	}

	log.WithFields(logrus.Fields{
		"account_id": acc.ID,
		"api_id":     acc.APIID,
		"date_from":  window.DateFrom.Format(time.DateOnly),
		"date_to":    window.DateTo.Format(time.DateOnly),
	}).Info("fetching reports for account")

	token, err := s.client.Authenticate(ctx, acc.ClientID, acc.ClientSecret)
	if err != nil {
		if ozonclient.IsAuthError(err) {
			log.WithError(err).Warnf("credentials rejected for account %d, skipping", acc.ID)
		} else {
			log.WithError(err).Errorf("authentication failed for account %d", acc.ID)
		}

		result.Err = err
		return result
	}

	campaigns, err := s.client.ListCampaigns(ctx, token)
	if err != nil {
		log.WithError(err).Errorf("failed to list campaigns for account %d", acc.ID)
		result.Err = err
		return result
	}

	if len(campaigns) == 0 {
		result.Skipped = true
		result.Reason = "no campaigns"
		return result
	}

	campaignIDs := make([]string, len(campaigns))
	for i, campaign := range campaigns {
		campaignIDs[i] = campaign.ID
	}

	chunks := watermarking.SplitWindow(window, s.appConfig.Ozon.MaxDaysPerRequest)
	batches := batchCampaigns(campaignIDs, s.appConfig.Ozon.CampaignsPerRequest)

	for _, chunk := range chunks {
		for _, batch := range batches {
			if err := s.fetchReport(ctx, acc, token, batch, chunk); err != nil {
				log.WithError(err).Errorf("failed to fetch report for account %d", acc.ID)
				result.Err = err
				return result
			}

			result.Files++
		}
	}

	return result
}

// fetchReport submits one report request, waits for it and stages the
// downloaded file.
func (s *ReportSyncService) fetchReport(
	ctx context.Context,
	acc domain.Account,
	token string,
	campaignIDs []string,
	window domain.SyncWindow,
) error {
	reportID, err := s.client.SubmitReport(ctx, token, campaignIDs, window.DateFrom, window.DateTo)
	if err != nil {
		return err
	}

	if err := s.waitForReport(ctx, token, reportID); err != nil {
		return err
	}

	name, content, err := s.client.DownloadReport(ctx, token, reportID)
	if err != nil {
		return err
	}

	// A single-campaign report is a bare csv; name it after the campaign
	// so the staged tree is self-describing.
	if len(campaignIDs) == 1 {
		name = campaignIDs[0] + ".csv"
	}

	return s.staging.Save(acc.ID, acc.APIID, name, content)
}

// waitForReport polls the report job until it is ready, up to the
// configured ceiling.
func (s *ReportSyncService) waitForReport(ctx context.Context, token, reportID string) error {
	delay := time.Duration(s.appConfig.Ozon.PollDelaySeconds) * time.Second
	maxAttempts := s.appConfig.Ozon.PollMaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := s.client.ReportStatus(ctx, token, reportID)
		if err != nil {
			return err
		}

		if status.Ready() {
			return nil
		}

		if status.Failed() {
			return fmt.Errorf("report %s failed upstream: %s", reportID, status.Error)
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return &ozonclient.ReportNeverReadyError{ReportID: reportID, Attempts: maxAttempts}
}

// ingestStagedFiles reads everything staged during the run, reconciles it
// into canonical rows and appends the batch to the fact table.
func (s *ReportSyncService) ingestStagedFiles(ctx context.Context, log *logrus.Entry, summary *domain.RunSummary) {
	files, err := s.staging.ReadAll()
	if err != nil {
		log.WithError(err).Error("failed to read staged files")
		return
	}

	if len(files) == 0 {
		log.Info("no downloaded files to ingest")
		summary.IngestOK = true
		return
	}

	result := reconciling.Reconcile(files)
	summary.FilesSkipped = len(result.SkippedFiles)
	summary.RowsSkipped = result.SkippedRows

	if len(result.Rows) == 0 {
		log.Info("no stat rows for the period")
		summary.IngestOK = true
		return
	}

	if err := s.writer.Append(ctx, result.Rows); err != nil {
		log.WithError(err).Error("failed to append statistics")
		return
	}

	summary.RowsIngested = len(result.Rows)
	summary.IngestOK = true
}

// batchCampaigns splits campaign ids into request-sized groups, preserving
// order.
func batchCampaigns(ids []string, size int) [][]string {
	if size <= 0 || len(ids) <= size {
		return [][]string{ids}
	}

	batches := make([][]string, 0, len(ids)/size+1)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}

	return batches
}

// TriggerManualSync starts a sync outside the schedule. It reports
// whether a run was actually started, so callers can tell a new run
// from one already in progress. The run slot is claimed before the
// goroutine is spawned, so of two concurrent triggers exactly one
// gets true.
func (s *ReportSyncService) TriggerManualSync() bool {
	if !s.beginRun() {
		logrus.Info("report sync already in progress, ignoring manual trigger")
		return false
	}

	logrus.Info("starting manual report sync")
	go s.runSync(s.runContext())

	return true
}

// runContext returns the lifecycle context recorded by Start, so manual
// runs stop with the application instead of outliving a SIGTERM.
func (s *ReportSyncService) runContext() context.Context {
	s.syncMutex.Lock()
	defer s.syncMutex.Unlock()

	if s.appCtx != nil {
		return s.appCtx
	}
	return context.Background()
}

// GetStatus reports the scheduler state for the status endpoint.
func (s *ReportSyncService) GetStatus() map[string]any {
	s.syncMutex.Lock()
	defer s.syncMutex.Unlock()

	status := map[string]any{
		"sync_enabled":           s.config.SyncEnabled,
		"sync_cron":              s.config.CronSchedule,
		"sync_lookback_days":     s.config.LookbackDays,
		"sync_max_concurrent":    s.config.MaxConcurrentJobs,
		"sync_running":           s.syncRunning,
		"last_sync_started_at":   s.lastSyncStartedAt,
		"last_sync_completed_at": s.lastSyncCompletedAt,
	}

	if s.lastRunSummary != nil {
		status["last_run"] = s.lastRunSummary
	}

	return status
}
