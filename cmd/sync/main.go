package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/database/postgres"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/integrator/ozon/ozonclient"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/migration"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/repository"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/staging"
	"github.com/vfg2006/ozon-performance-sync/internal/api"
	"github.com/vfg2006/ozon-performance-sync/internal/config"
	"github.com/vfg2006/ozon-performance-sync/internal/scheduler"
	"github.com/vfg2006/ozon-performance-sync/internal/usecases/authenticating"
	"github.com/vfg2006/ozon-performance-sync/internal/usecases/ingesting"
)

func main() {
	configureLogger()

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	logLevel, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		logrus.Warnf("invalid log level %q, falling back to 'info'", cfg.App.LogLevel)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
	logrus.Infof("log level set to %s", logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgConn := pgconn(ctx, cfg.Database)
	defer pgConn.Close()

	if err := migration.MigrateUp(pgConn.DB); err != nil {
		logrus.WithError(err).Fatal("failed to apply database migrations")
	}

	accountRepo := repository.NewAccountRepository(pgConn)
	statsRepo := repository.NewStatisticsRepository(pgConn, cfg.ReportSync.StatTable)

	authenticator := authenticating.NewService(cfg)

	ozonClient := ozonclient.NewClient(cfg)
	stagingStore := staging.NewStore(cfg.ReportSync.StagingDir)

	writer := ingesting.NewWriter(
		statsRepo,
		cfg.ReportSync.IngestAttempts,
		time.Duration(cfg.ReportSync.IngestDelaySecs)*time.Second,
	)

	reportSyncService := scheduler.NewReportSyncService(
		accountRepo,
		statsRepo,
		ozonClient,
		stagingStore,
		writer,
		cfg,
	)

	if err := reportSyncService.Start(ctx); err != nil {
		logrus.WithError(err).Error("failed to start the report sync scheduler")
	} else {
		logrus.Info("report sync scheduler started")
	}

	server, err := api.New(cfg, authenticator, reportSyncService)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := server.Run(ctx); err != nil {
		logrus.Error(err)
	}
}

func configureLogger() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

func pgconn(ctx context.Context, dbConfig config.Database) *postgres.Connection {
	conn, err := postgres.NewConnection(ctx, dbConfig)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to postgres")
	}

	if err := conn.Ping(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	logrus.Info("postgres connection established")
	return conn
}
