package ingesting

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/ozon-performance-sync/infrastructure/repository/mocks"
	"github.com/vfg2006/ozon-performance-sync/internal/domain"
	"go.uber.org/mock/gomock"
)

func validRows() []domain.CanonicalRow {
	return []domain.CanonicalRow{
		{APIID: 77, AccountID: 10, Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
	}
}

func TestAppend(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockStatisticsRepository(ctrl)
	repo.EXPECT().Append(gomock.Any()).Return(nil)

	writer := NewWriter(repo, 3, 0)

	assert.NoError(t, writer.Append(context.Background(), validRows()))
}

func TestAppendEmptyBatchIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockStatisticsRepository(ctrl)

	writer := NewWriter(repo, 3, 0)

	assert.NoError(t, writer.Append(context.Background(), nil))
}

func TestAppendRejectsRowsWithoutIdentity(t *testing.T) {
	tests := []struct {
		name string
		row  domain.CanonicalRow
	}{
		{
			name: "missing api id",
			row:  domain.CanonicalRow{AccountID: 10, Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		},
		{
			name: "missing account id",
			row:  domain.CanonicalRow{APIID: 77, Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		},
		{
			name: "missing date",
			row:  domain.CanonicalRow{APIID: 77, AccountID: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			// The repository must never be reached with a broken row.
			repo := mocks.NewMockStatisticsRepository(ctrl)

			writer := NewWriter(repo, 3, 0)

			err := writer.Append(context.Background(), []domain.CanonicalRow{tt.row})
			require.Error(t, err)

			var validationErr *ValidationError
			assert.True(t, errors.As(err, &validationErr))
		})
	}
}

func TestAppendRetriesTransientErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connErr := &pq.Error{Code: "08006"} // connection failure

	repo := mocks.NewMockStatisticsRepository(ctrl)
	gomock.InOrder(
		repo.EXPECT().Append(gomock.Any()).Return(connErr),
		repo.EXPECT().Append(gomock.Any()).Return(connErr),
		repo.EXPECT().Append(gomock.Any()).Return(nil),
	)

	writer := NewWriter(repo, 3, 0)

	assert.NoError(t, writer.Append(context.Background(), validRows()))
}

func TestAppendGivesUpAfterConfiguredAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connErr := &pq.Error{Code: "08006"}

	repo := mocks.NewMockStatisticsRepository(ctrl)
	repo.EXPECT().Append(gomock.Any()).Return(connErr).Times(3)

	writer := NewWriter(repo, 3, 0)

	err := writer.Append(context.Background(), validRows())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestAppendDoesNotRetrySchemaErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	schemaErr := &pq.Error{Code: "42703"} // undefined column

	repo := mocks.NewMockStatisticsRepository(ctrl)
	repo.EXPECT().Append(gomock.Any()).Return(schemaErr).Times(1)

	writer := NewWriter(repo, 3, 0)

	err := writer.Append(context.Background(), validRows())
	require.Error(t, err)

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
}
