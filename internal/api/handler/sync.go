package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ozon-performance-sync/internal/scheduler"
	"github.com/vfg2006/ozon-performance-sync/pkg/apiErrors"
)

// RunSync triggers a report sync outside the cron schedule.
func RunSync(service *scheduler.ReportSyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - RunSync")

		if service == nil {
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "report sync service not available", nil)
			return
		}

		if !service.TriggerManualSync() {
			apiErrors.WriteError(w, apiErrors.ErrSyncInProgress, "a report sync is already running", nil)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "report sync started",
		})
	}
}

// GetSyncStatus reports the scheduler state and the last run summary.
func GetSyncStatus(service *scheduler.ReportSyncService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - GetSyncStatus")

		if service == nil {
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "report sync service not available", nil)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.GetStatus())
	}
}
