// Package metrics holds the Prometheus collectors for remote calls, retries,
// compression passes and analysis jobs. The collectors live on a private
// registry so a desktop run can dump them to a node-exporter textfile when it
// exits instead of serving an HTTP endpoint.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "video_analyzer"

// Status label values shared by the recorders.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Registry is the registry every collector in this package is registered on.
var Registry = prometheus.NewRegistry()

var (
	// remoteCallsTotal counts finished remote operations by label and outcome.
	remoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Total number of remote operations by outcome",
		},
		[]string{"operation", "status"},
	)

	// remoteCallDuration covers every attempt of a remote operation, waits included.
	remoteCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Duration of remote operations including retry waits",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	// retriesTotal counts retry waits scheduled per operation label.
	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of retries scheduled per operation",
		},
		[]string{"operation"},
	)

	// compressionAttemptsTotal counts encoder passes by outcome (fit, too_large, failed).
	compressionAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compression_attempts_total",
			Help:      "Total number of re-encode passes by outcome",
		},
		[]string{"outcome"},
	)

	// uploadBytesTotal sums the bytes handed to the remote file store.
	uploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes uploaded to the remote file store",
		},
	)

	// jobsActive is the number of analysis jobs currently running.
	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of analysis jobs currently running",
		},
	)

	// jobsTotal counts finished jobs by terminal status.
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of finished analysis jobs by status",
		},
		[]string{"status"},
	)

	// jobDuration is the wall time of a job from start to its terminal state.
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of analysis jobs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"status"},
	)

	// keyValidationsTotal counts API key checks by result (success, invalid,
	// network_error, quota, unknown).
	keyValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_key_validations_total",
			Help:      "Total number of API key validations by result",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		remoteCallsTotal,
		remoteCallDuration,
		retriesTotal,
		compressionAttemptsTotal,
		uploadBytesTotal,
		jobsActive,
		jobsTotal,
		jobDuration,
		keyValidationsTotal,
	)
}

// RecordRemoteCall records the outcome and total duration of a remote operation.
func RecordRemoteCall(operation string, err error, elapsed time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	remoteCallsTotal.WithLabelValues(operation, status).Inc()
	remoteCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordRetry records that a retry wait was scheduled for operation.
func RecordRetry(operation string) {
	retriesTotal.WithLabelValues(operation).Inc()
}

// RecordCompressionAttempt records one encoder pass.
func RecordCompressionAttempt(outcome string) {
	compressionAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordUpload adds n bytes to the upload counter.
func RecordUpload(n int64) {
	if n > 0 {
		uploadBytesTotal.Add(float64(n))
	}
}

// JobStarted marks a job as running. Pair it with JobFinished.
func JobStarted() {
	jobsActive.Inc()
}

// JobFinished marks a job as no longer running and records its terminal status.
func JobFinished(status string, elapsed time.Duration) {
	jobsActive.Dec()
	jobsTotal.WithLabelValues(status).Inc()
	jobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordKeyValidation records the result of an API key check.
func RecordKeyValidation(result string) {
	keyValidationsTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes the current state of Registry to path in the
// Prometheus text exposition format, suitable for the node exporter
// textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
