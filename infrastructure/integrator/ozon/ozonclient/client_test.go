package ozonclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/ozon-performance-sync/internal/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Ozon: config.Ozon{
			BaseURL:             baseURL,
			RequestAttempts:     3,
			RequestDelaySeconds: 0,
			Timeout:             5 * time.Second,
		},
	}
}

func TestAuthenticate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/client/token", r.URL.Path)
		w.Write([]byte(`{"access_token":"tok-123","expires_in":1800,"token_type":"Bearer"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	token, err := client.Authenticate(context.Background(), "client-1", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestAuthenticateRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid client", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.Authenticate(context.Background(), "client-1", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestRateLimitRetryThenSuccess(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"list":[{"id":"111","title":"Promo","state":"CAMPAIGN_STATE_RUNNING"}]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	campaigns, err := client.ListCampaigns(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, campaigns, 1)
	assert.Equal(t, "111", campaigns[0].ID)
}

func TestRateLimitExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.ListCampaigns(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestSubmitReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/client/statistics", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"UUID":"report-uuid-1"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	id, err := client.SubmitReport(
		context.Background(),
		"tok",
		[]string{"111", "112"},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.Equal(t, "report-uuid-1", id)
}

func TestReportStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/client/statistics/report-uuid-1", r.URL.Path)
		w.Write([]byte(`{"UUID":"report-uuid-1","state":"OK"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	status, err := client.ReportStatus(context.Background(), "tok", "report-uuid-1")
	require.NoError(t, err)
	assert.True(t, status.Ready())
	assert.False(t, status.Failed())
}

func TestDownloadReportNamesByContent(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		wantName string
	}{
		{"csv payload", []byte("Дата;Показы\n"), "report-uuid-1.csv"},
		{"zip payload", []byte("PK\x03\x04rest-of-archive"), "report-uuid-1.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write(tt.body)
			}))
			defer server.Close()

			client := NewClient(testConfig(server.URL))

			name, content, err := client.DownloadReport(context.Background(), "tok", "report-uuid-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.body, content)
		})
	}
}
