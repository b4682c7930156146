package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/database/postgres"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
)

const (
	// ozonPerformanceMarketplaceID identifies the performance marketplace
	// in the shared account catalog.
	ozonPerformanceMarketplaceID = 14

	// clientIDAttribute is the attribute_id under which the performance
	// client id is stored; the sibling attribute of the same account holds
	// the client secret.
	clientIDAttribute = 9
)

type AccountRepository interface {
	ListAccounts() ([]domain.Account, error)
}

type accountRepository struct {
	conn *postgres.Connection
}

func NewAccountRepository(conn *postgres.Connection) AccountRepository {
	return &accountRepository{
		conn: conn,
	}
}

// ListAccounts returns every active account with a performance credential
// pair, deduplicated by (client_id, client_secret) keeping the last row in
// id order. The credential attributes live in two rows of the same
// attribute table, hence the self join.
func (a *accountRepository) ListAccounts() ([]domain.Account, error) {
	query, args, err := squirrel.
		Select("al.id", "asd.attribute_value AS client_id", "asd2.attribute_value AS client_secret").
		From("account_service_data asd").
		Join("account_list al ON asd.account_id = al.id").
		JoinClause(`JOIN (SELECT asd.account_id, asd.attribute_id, asd.attribute_value
			FROM account_service_data asd
			JOIN account_list al ON asd.account_id = al.id
			WHERE al.mp_id = ?) asd2
			ON asd2.account_id = asd.account_id AND asd2.attribute_id <> asd.attribute_id`,
			ozonPerformanceMarketplaceID).
		Where(squirrel.Eq{
			"al.mp_id":         ozonPerformanceMarketplaceID,
			"asd.attribute_id": clientIDAttribute,
			"al.status_1":      "Active",
		}).
		OrderBy("al.id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := a.conn.Query(query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account

	for rows.Next() {
		acc := domain.Account{}
		if err := rows.Scan(&acc.ID, &acc.ClientID, &acc.ClientSecret); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		apiID, err := apiIDFromClientID(acc.ClientID)
		if err != nil {
			logrus.Warnf("account %d has a malformed client id, skipping: %v", acc.ID, err)
			continue
		}
		acc.APIID = apiID

		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return dedupeByCredentials(accounts), nil
}

// apiIDFromClientID extracts the numeric API client id from a credential of
// the form "<id>-<n>@advertising.performance.ozon.ru".
func apiIDFromClientID(clientID string) (int64, error) {
	prefix := strings.SplitN(clientID, "-", 2)[0]
	return strconv.ParseInt(prefix, 10, 64)
}

// dedupeByCredentials keeps one account per credential pair. The input is
// ordered by id, and the last occurrence wins.
func dedupeByCredentials(accounts []domain.Account) []domain.Account {
	last := make(map[string]int, len(accounts))
	for i, acc := range accounts {
		last[acc.ClientID+"\x00"+acc.ClientSecret] = i
	}

	if len(last) == len(accounts) {
		return accounts
	}

	deduped := make([]domain.Account, 0, len(last))
	for i, acc := range accounts {
		if last[acc.ClientID+"\x00"+acc.ClientSecret] == i {
			deduped = append(deduped, acc)
		}
	}

	return deduped
}
