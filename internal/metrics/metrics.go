// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts admin API requests by path and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellysync_http_requests_total",
		Help: "Admin API requests served",
	}, []string{"path", "status"})

	// RefreshRuns counts refresh executions by outcome.
	RefreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jellysync_refresh_runs_total",
		Help: "List refresh runs by result",
	}, []string{"result"})

	// RefreshSkipped counts scheduled refreshes suppressed by the throttle.
	RefreshSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jellysync_refresh_skipped_total",
		Help: "Scheduled refreshes skipped because the throttle window had not elapsed",
	})
)
