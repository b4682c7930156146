package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/database/postgres"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
)

type StatisticsRepository interface {
	MaxDatePerAPIClient() (map[int64]time.Time, error)
	Append(rows []domain.CanonicalRow) error
}

type statisticsRepository struct {
	conn  *postgres.Connection
	table string
}

func NewStatisticsRepository(conn *postgres.Connection, table string) StatisticsRepository {
	return &statisticsRepository{
		conn:  conn,
		table: table,
	}
}

// MaxDatePerAPIClient snapshots the fact table watermark: the newest stat
// date already stored for each api client. Taken once per run, before any
// fetch starts.
func (s *statisticsRepository) MaxDatePerAPIClient() (map[int64]time.Time, error) {
	query, args, err := squirrel.
		Select("api_id", "max(date) AS max_date").
		From(s.table).
		GroupBy("api_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return map[int64]time.Time{}, nil
		}
		return nil, fmt.Errorf("failed to read watermarks: %w", err)
	}
	defer rows.Close()

	maxDates := make(map[int64]time.Time)

	for rows.Next() {
		var apiID int64
		var maxDate time.Time
		if err := rows.Scan(&apiID, &maxDate); err != nil {
			return nil, fmt.Errorf("failed to scan watermark: %w", err)
		}
		maxDates[apiID] = maxDate
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watermarks: %w", err)
	}

	return maxDates, nil
}

// Append bulk-inserts reconciled rows in one multi-row statement, so a run
// either lands whole or not at all. Retry policy lives with the caller; the
// repository reports errors as they are.
func (s *statisticsRepository) Append(rows []domain.CanonicalRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := squirrel.StatementBuilder.
		Insert(s.table).
		Columns(
			"api_id",
			"account_id",
			"campaign_id",
			"campaign_name",
			"date",
			"views",
			"clicks",
			"ctr",
			"expense",
			"avrg_bid",
			"orders",
			"revenue",
		).
		PlaceholderFormat(squirrel.Dollar)

	for _, row := range rows {
		query = query.Values(
			row.APIID,
			row.AccountID,
			row.CampaignID,
			row.CampaignName,
			row.Date,
			row.Views,
			row.Clicks,
			row.CTR,
			row.Expense,
			row.AvgBid,
			row.Orders,
			row.Revenue,
		)
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.conn.Exec(sqlQuery, args...); err != nil {
		return fmt.Errorf("failed to append statistics: %w", err)
	}

	return nil
}
