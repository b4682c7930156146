package handler

import (
	"net/http"

	"github.com/vfg2006/ozon-performance-sync/internal/api/handler/router"
	"github.com/vfg2006/ozon-performance-sync/internal/scheduler"
)

func Healthcheck() []router.Route {
	return []router.Route{
		{
			Path:    "/healthcheck",
			Method:  http.MethodGet,
			Handler: HealthcheckHandler(),
		},
	}
}

func SyncJobs(service *scheduler.ReportSyncService) []router.Route {
	return []router.Route{
		{
			Path:    "/v1/sync/run",
			Method:  http.MethodPost,
			Handler: RunSync(service),
		},
		{
			Path:    "/v1/sync/status",
			Method:  http.MethodGet,
			Handler: GetSyncStatus(service),
		},
	}
}
