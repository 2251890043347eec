package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsEndpoint = "0.0.0.0:9090"
)

var (
	// TasksProcessed counts finished onboarding tasks by terminal status.
	TasksProcessed *prometheus.CounterVec

	// ProcessingSeconds measures wall time of one full onboarding run.
	ProcessingSeconds prometheus.Summary

	// StoreQueryErrorCount counts failed queries against the task store
	// and the inventory, by store kind.
	StoreQueryErrorCount *prometheus.CounterVec
)

func init() {
	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarder_tasks_processed",
			Help: "A counter metric to measure the total count of processed onboarding tasks by terminal status",
		},
		[]string{"status"},
	)

	ProcessingSeconds = promauto.NewSummary(
		prometheus.SummaryOpts{
			Name: "onboarder_task_duration_seconds",
			Help: "A summary metric to measure the total time spent completing each onboarding task",
		},
	)

	StoreQueryErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarder_store_query_error_count",
			Help: "A counter metric to measure the total count of errors querying the task store or inventory",
		},
		[]string{"storeKind"},
	)
}

// ListenAndServe exposes prometheus metrics as /metrics
func ListenAndServe() {
	go func() {
		http.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              MetricsEndpoint,
			ReadHeaderTimeout: 2 * time.Second, // nolint:gomnd // time duration value is clear as is.
		}

		if err := server.ListenAndServe(); err != nil {
			log.Println(err)
		}
	}()
}
