package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_bot_notifications_sent_total",
			Help: "Delivered notifications by category",
		},
		[]string{"category"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_bot_notification_failures_total",
			Help: "Failed notification deliveries by category",
		},
		[]string{"category"},
	)

	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_bot_refresh_runs_total",
			Help: "Refresh attempts by entity kind and outcome status",
		},
		[]string{"entity", "status"},
	)

	LessonsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "timetable_bot_lessons_stored",
			Help: "Lessons written by the most recent timetable refresh",
		},
	)
)

// Serve exposes /metrics on addr. Blocks, so run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
