package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	App        App        `mapstructure:",squash"`
	Server     Server     `mapstructure:",squash"`
	Database   Database   `mapstructure:",squash"`
	Ozon       Ozon       `mapstructure:",squash"`
	ReportSync ReportSync `mapstructure:",squash"`
	Auth       Auth       `mapstructure:",squash"`
}

type App struct {
	LogLevel string `mapstructure:"log_level"`
}

type Server struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type Database struct {
	DSN      string `mapstructure:"-"`
	Driver   string `mapstructure:"database_driver"`
	Password string `mapstructure:"database_password"`
	URL      string `mapstructure:"database_url"`
	User     string `mapstructure:"database_user"`
}

type Ozon struct {
	BaseURL             string        `mapstructure:"ozon_base_url"`
	RequestAttempts     int           `mapstructure:"ozon_request_attempts"`
	RequestDelaySeconds int           `mapstructure:"ozon_request_delay_seconds"`
	PollMaxAttempts     int           `mapstructure:"ozon_poll_max_attempts"`
	PollDelaySeconds    int           `mapstructure:"ozon_poll_delay_seconds"`
	MaxDaysPerRequest   int           `mapstructure:"ozon_max_days_per_request"`
	CampaignsPerRequest int           `mapstructure:"ozon_campaigns_per_request"`
	Timeout             time.Duration `mapstructure:"ozon_timeout"`
}

type ReportSync struct {
	CronSchedule      string `mapstructure:"report_sync_cron"`
	LookbackDays      int    `mapstructure:"report_sync_lookback_days"`
	MaxConcurrentJobs int    `mapstructure:"report_sync_max_concurrent_jobs"`
	IngestAttempts    int    `mapstructure:"report_sync_ingest_attempts"`
	IngestDelaySecs   int    `mapstructure:"report_sync_ingest_delay_seconds"`
	StagingDir        string `mapstructure:"report_sync_staging_dir"`
	StatTable         string `mapstructure:"report_sync_stat_table"`
	DeleteFiles       bool   `mapstructure:"report_sync_delete_files"`
	Enabled           bool   `mapstructure:"report_sync_enabled"`
}

type Auth struct {
	Secret string `mapstructure:"auth_secret"`
}

func SetDefaults() {
	viper.SetDefault("HOST", "localhost")
	viper.SetDefault("PORT", 8000)

	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_URL", "localhost:5432/ecomru")
	viper.SetDefault("DATABASE_USER", "postgres")
	viper.SetDefault("DATABASE_PASSWORD", "root")

	viper.SetDefault("OZON_BASE_URL", "https://performance.ozon.ru")
	viper.SetDefault("OZON_REQUEST_ATTEMPTS", 5)      // retries after HTTP 429
	viper.SetDefault("OZON_REQUEST_DELAY_SECONDS", 5) // delay between retries
	viper.SetDefault("OZON_POLL_MAX_ATTEMPTS", 30)
	viper.SetDefault("OZON_POLL_DELAY_SECONDS", 10)
	viper.SetDefault("OZON_MAX_DAYS_PER_REQUEST", 70) // API limit on the report window
	viper.SetDefault("OZON_CAMPAIGNS_PER_REQUEST", 8) // API limit on campaigns per report
	viper.SetDefault("OZON_TIMEOUT", "60s")

	viper.SetDefault("REPORT_SYNC_CRON", "0 4 * * *") // every day at 4am
	viper.SetDefault("REPORT_SYNC_LOOKBACK_DAYS", 90) // window for accounts without history
	viper.SetDefault("REPORT_SYNC_MAX_CONCURRENT_JOBS", 3)
	viper.SetDefault("REPORT_SYNC_INGEST_ATTEMPTS", 3)
	viper.SetDefault("REPORT_SYNC_INGEST_DELAY_SECONDS", 5)
	viper.SetDefault("REPORT_SYNC_STAGING_DIR", "./data")
	viper.SetDefault("REPORT_SYNC_STAT_TABLE", "ozon_perf_statistics")
	viper.SetDefault("REPORT_SYNC_DELETE_FILES", true)
	viper.SetDefault("REPORT_SYNC_ENABLED", false)

	viper.SetDefault("AUTH_SECRET", "your_secret_key")

	viper.SetDefault("LOG_LEVEL", "debug")
}

func NewConfig() (*Config, error) {
	loadEnvFile()

	config := &Config{}

	SetDefaults()

	viper.SetConfigType("env")
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logrus.Info("using environment variables only (viper could not read .env): ", err)
	}

	err := viper.Unmarshal(&config, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}

	config.Database.DSN = fmt.Sprintf(
		"%s://%s:%s@%s",
		config.Database.Driver,
		config.Database.User,
		config.Database.Password,
		config.Database.URL,
	)

	return config, nil
}

func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		logrus.Warn("could not resolve working directory: ", err)
		return
	}

	locations := []string{
		filepath.Join(cwd, ".env"),
		filepath.Join(filepath.Dir(cwd), ".env"),
	}

	for _, location := range locations {
		if err := godotenv.Load(location); err == nil {
			logrus.Info(".env loaded from: ", location)
			return
		}
	}
}
