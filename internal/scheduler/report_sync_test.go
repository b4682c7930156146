package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ozondomain "github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/domain"
	ozonmocks "github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/mocks"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/ozonclient"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/repository/mocks"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/staging"
	"github.com/vfg2006/ozon-performance-sync/internal/config"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
	"github.com/vfg2006/ozon-performance-sync/internal/usecases/ingesting"
	"go.uber.org/mock/gomock"
)

func testAppConfig(stagingDir string) *config.Config {
	return &config.Config{
		Ozon: config.Ozon{
			MaxDaysPerRequest:   70,
			CampaignsPerRequest: 8,
			PollMaxAttempts:     3,
			PollDelaySeconds:    0,
		},
		ReportSync: config.ReportSync{
			CronSchedule:      "0 4 * * *",
			LookbackDays:      90,
			MaxConcurrentJobs: 2,
			StagingDir:        stagingDir,
			DeleteFiles:       true,
			Enabled:           true,
		},
	}
}

type syncFixture struct {
	service     *ReportSyncService
	accountRepo *mocks.MockAccountRepository
	statsRepo   *mocks.MockStatisticsRepository
	client      *ozonmocks.MockClient
}

func newSyncFixture(t *testing.T, ctrl *gomock.Controller) *syncFixture {
	appConfig := testAppConfig(t.TempDir())

	accountRepo := mocks.NewMockAccountRepository(ctrl)
	statsRepo := mocks.NewMockStatisticsRepository(ctrl)
	client := ozonmocks.NewMockClient(ctrl)
	store := staging.NewStore(appConfig.ReportSync.StagingDir)
	writer := ingesting.NewWriter(statsRepo, 1, 0)

	return &syncFixture{
		service:     NewReportSyncService(accountRepo, statsRepo, client, store, writer, appConfig),
		accountRepo: accountRepo,
		statsRepo:   statsRepo,
		client:      client,
	}
}

func testAccount() domain.Account {
	return domain.Account{
		ID:           10,
		APIID:        77,
		ClientID:     "77-1@advertising.performance.ozon.ru",
		ClientSecret: "secret",
	}
}

func TestSyncRunHappyPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newSyncFixture(t, ctrl)
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	f.accountRepo.EXPECT().ListAccounts().Return([]domain.Account{testAccount()}, nil)
	f.statsRepo.EXPECT().MaxDatePerAPIClient().Return(map[int64]time.Time{
		77: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
	}, nil)

	f.client.EXPECT().Authenticate(gomock.Any(), "77-1@advertising.performance.ozon.ru", "secret").Return("tok", nil)
	f.client.EXPECT().ListCampaigns(gomock.Any(), "tok").Return([]ozondomain.Campaign{
		{ID: "111", Title: "Promo"},
	}, nil)
	f.client.EXPECT().
		SubmitReport(gomock.Any(), "tok", []string{"111"},
			time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)).
		Return("uuid-1", nil)
	f.client.EXPECT().ReportStatus(gomock.Any(), "tok", "uuid-1").
		Return(&ozondomain.ReportStatus{State: "OK"}, nil)
	f.client.EXPECT().DownloadReport(gomock.Any(), "tok", "uuid-1").
		Return("uuid-1.csv", []byte("Дата;Показы;Клики\n2024-01-14;100;7\n"), nil)

	f.statsRepo.EXPECT().Append(gomock.Any()).DoAndReturn(func(rows []domain.CanonicalRow) error {
		require.Len(t, rows, 1)
		assert.Equal(t, int64(77), rows[0].APIID)
		assert.Equal(t, int64(10), rows[0].AccountID)
		require.NotNil(t, rows[0].Views)
		assert.Equal(t, int64(100), *rows[0].Views)
		return nil
	})

	summary := f.service.syncAllReportsWithDate(context.Background(), today)

	assert.Equal(t, 1, summary.AccountsTotal)
	assert.Equal(t, 1, summary.AccountsSynced)
	assert.Zero(t, summary.AccountsFailed)
	assert.Equal(t, 1, summary.FilesFetched)
	assert.Equal(t, 1, summary.RowsIngested)
	assert.True(t, summary.IngestOK)
}

func TestSyncRunSkipsUpToDateAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newSyncFixture(t, ctrl)
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	f.accountRepo.EXPECT().ListAccounts().Return([]domain.Account{testAccount()}, nil)
	// Watermark already at yesterday: nothing to fetch, the client must
	// never be called.
	f.statsRepo.EXPECT().MaxDatePerAPIClient().Return(map[int64]time.Time{
		77: time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC),
	}, nil)

	summary := f.service.syncAllReportsWithDate(context.Background(), today)

	require.Len(t, summary.Accounts, 1)
	assert.True(t, summary.Accounts[0].Skipped)
	assert.Equal(t, "up to date", summary.Accounts[0].Reason)
	assert.Zero(t, summary.FilesFetched)
	assert.True(t, summary.IngestOK)
}

func TestSyncRunIsolatesFailingAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newSyncFixture(t, ctrl)
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	good := testAccount()
	bad := domain.Account{
		ID:           11,
		APIID:        88,
		ClientID:     "88-1@advertising.performance.ozon.ru",
		ClientSecret: "expired",
	}

	f.accountRepo.EXPECT().ListAccounts().Return([]domain.Account{bad, good}, nil)
	f.statsRepo.EXPECT().MaxDatePerAPIClient().Return(map[int64]time.Time{
		77: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
		88: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
	}, nil)

	f.client.EXPECT().Authenticate(gomock.Any(), bad.ClientID, "expired").
		Return("", &ozonclient.AuthError{ClientID: bad.ClientID, StatusCode: 403})

	f.client.EXPECT().Authenticate(gomock.Any(), good.ClientID, "secret").Return("tok", nil)
	f.client.EXPECT().ListCampaigns(gomock.Any(), "tok").Return([]ozondomain.Campaign{{ID: "111"}}, nil)
	f.client.EXPECT().SubmitReport(gomock.Any(), "tok", []string{"111"}, gomock.Any(), gomock.Any()).
		Return("uuid-1", nil)
	f.client.EXPECT().ReportStatus(gomock.Any(), "tok", "uuid-1").
		Return(&ozondomain.ReportStatus{State: "OK"}, nil)
	f.client.EXPECT().DownloadReport(gomock.Any(), "tok", "uuid-1").
		Return("uuid-1.csv", []byte("Дата;Показы\n2024-01-14;5\n"), nil)

	f.statsRepo.EXPECT().Append(gomock.Any()).Return(nil)

	summary := f.service.syncAllReportsWithDate(context.Background(), today)

	assert.Equal(t, 1, summary.AccountsFailed)
	assert.Equal(t, 1, summary.AccountsSynced)
	assert.Equal(t, 1, summary.RowsIngested)
	assert.True(t, summary.IngestOK)
}

func TestSyncRunReportNeverReady(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newSyncFixture(t, ctrl)
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	f.accountRepo.EXPECT().ListAccounts().Return([]domain.Account{testAccount()}, nil)
	f.statsRepo.EXPECT().MaxDatePerAPIClient().Return(map[int64]time.Time{
		77: time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC),
	}, nil)

	f.client.EXPECT().Authenticate(gomock.Any(), gomock.Any(), gomock.Any()).Return("tok", nil)
	f.client.EXPECT().ListCampaigns(gomock.Any(), "tok").Return([]ozondomain.Campaign{{ID: "111"}}, nil)
	f.client.EXPECT().SubmitReport(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		Return("uuid-1", nil)
	// The job never leaves the queue; the poll ceiling must end the wait.
	f.client.EXPECT().ReportStatus(gomock.Any(), "tok", "uuid-1").
		Return(&ozondomain.ReportStatus{State: "IN_QUEUE"}, nil).
		Times(3)

	summary := f.service.syncAllReportsWithDate(context.Background(), today)

	assert.Equal(t, 1, summary.AccountsFailed)
	require.Len(t, summary.Accounts, 1)

	var neverReady *ozonclient.ReportNeverReadyError
	assert.ErrorAs(t, summary.Accounts[0].Err, &neverReady)
}

func TestSyncRunBatchesCampaignsAndChunksWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newSyncFixture(t, ctrl)
	f.service.appConfig.Ozon.CampaignsPerRequest = 2
	f.service.appConfig.Ozon.MaxDaysPerRequest = 7
	today := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	f.accountRepo.EXPECT().ListAccounts().Return([]domain.Account{testAccount()}, nil)
	// 10 days behind: two 7-day-capped chunks; 3 campaigns: two batches.
	f.statsRepo.EXPECT().MaxDatePerAPIClient().Return(map[int64]time.Time{
		77: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	}, nil)

	f.client.EXPECT().Authenticate(gomock.Any(), gomock.Any(), gomock.Any()).Return("tok", nil)
	f.client.EXPECT().ListCampaigns(gomock.Any(), "tok").Return([]ozondomain.Campaign{
		{ID: "111"}, {ID: "112"}, {ID: "113"},
	}, nil)

	f.client.EXPECT().SubmitReport(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		Return("uuid-1", nil).
		Times(4)
	f.client.EXPECT().ReportStatus(gomock.Any(), "tok", "uuid-1").
		Return(&ozondomain.ReportStatus{State: "OK"}, nil).
		Times(4)
	f.client.EXPECT().DownloadReport(gomock.Any(), "tok", "uuid-1").
		Return("uuid-1.csv", []byte("Дата;Показы\n2024-01-06;5\n"), nil).
		Times(4)

	f.statsRepo.EXPECT().Append(gomock.Any()).Return(nil)

	summary := f.service.syncAllReportsWithDate(context.Background(), today)

	assert.Equal(t, 4, summary.FilesFetched)
	assert.Equal(t, 1, summary.AccountsSynced)
}

func TestTriggerManualSyncRefusesSecondCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newSyncFixture(t, ctrl)

	release := make(chan struct{})
	f.accountRepo.EXPECT().ListAccounts().DoAndReturn(func() ([]domain.Account, error) {
		<-release
		return nil, nil
	})

	require.True(t, f.service.TriggerManualSync())
	// The first run is still in flight: the second trigger must be refused
	// immediately, before its goroutine could have done any work.
	assert.False(t, f.service.TriggerManualSync())

	close(release)

	require.Eventually(t, func() bool {
		return f.service.GetStatus()["sync_running"] == false
	}, time.Second, 5*time.Millisecond)

	assert.NotNil(t, f.service.GetStatus()["last_run"])
}

func TestManualSyncCarriesLifecycleContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newSyncFixture(t, ctrl)
	f.service.config.SyncEnabled = false

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.service.Start(ctx))
	cancel()

	f.accountRepo.EXPECT().ListAccounts().Return([]domain.Account{testAccount()}, nil)
	f.statsRepo.EXPECT().MaxDatePerAPIClient().Return(map[int64]time.Time{}, nil)

	seen := make(chan error, 1)
	f.client.EXPECT().Authenticate(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(callCtx context.Context, _, _ string) (string, error) {
			seen <- callCtx.Err()
			return "", callCtx.Err()
		})

	require.True(t, f.service.TriggerManualSync())

	// The cancelled application context must reach the client call; a
	// manual run on a detached context would report nil here and keep
	// polling after shutdown.
	select {
	case err := <-seen:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("manual sync never reached the client")
	}

	require.Eventually(t, func() bool {
		return f.service.GetStatus()["sync_running"] == false
	}, time.Second, 5*time.Millisecond)
}

func TestBatchCampaigns(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		size int
		want [][]string
	}{
		{
			name: "fewer ids than the batch size",
			ids:  []string{"1", "2"},
			size: 8,
			want: [][]string{{"1", "2"}},
		},
		{
			name: "exact multiple",
			ids:  []string{"1", "2", "3", "4"},
			size: 2,
			want: [][]string{{"1", "2"}, {"3", "4"}},
		},
		{
			name: "remainder forms a short final batch",
			ids:  []string{"1", "2", "3"},
			size: 2,
			want: [][]string{{"1", "2"}, {"3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, batchCampaigns(tt.ids, tt.size))
		})
	}
}
