package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	parseLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_parse_lines_total",
			Help: "Total number of raw log lines seen by the parser, by result.",
		},
		[]string{"result"},
	)
	queryJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_query_jobs_total",
			Help: "Total number of query executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loglens_query_polls_total",
			Help: "Total number of remote job status polls.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loglens_query_duration_seconds",
			Help:    "Wall-clock time from submission to terminal outcome.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"outcome"},
	)
	transformObjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_transform_objects_total",
			Help: "Total number of raw log objects processed by the transform job, by result.",
		},
		[]string{"result"},
	)
	uploadFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_upload_files_total",
			Help: "Total number of local files uploaded to object storage, by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		parseLinesTotal,
		queryJobsTotal,
		queryPollsTotal,
		queryDurationSeconds,
		transformObjectsTotal,
		uploadFilesTotal,
	)
}

func ObserveParsedLine(accepted bool) {
	if accepted {
		parseLinesTotal.WithLabelValues("accepted").Inc()
		return
	}
	parseLinesTotal.WithLabelValues("dropped").Inc()
}

func IncrementQueryPolls() {
	queryPollsTotal.Inc()
}

// ObserveQueryOutcome records one finished execution. outcome is one of
// succeeded, failed, cancelled, rejected, timeout, aborted, error.
func ObserveQueryOutcome(outcome string, elapsed time.Duration) {
	queryJobsTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		queryDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}
}

func ObserveTransformObject(ok bool) {
	transformObjectsTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func ObserveUploadFile(ok bool) {
	uploadFilesTotal.WithLabelValues(resultLabel(ok)).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
