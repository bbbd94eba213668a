package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobOutcomeCompleted = "completed"
	JobOutcomeRetried   = "retried"
	JobOutcomeDead      = "dead"
)

// WorkerMetrics captures job worker health signals.
type WorkerMetrics struct {
	jobsProcessed *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	claimBatch    prometheus.Histogram
	deadLetters   *prometheus.CounterVec
	runLoopLag    prometheus.Observer
}

var (
	workerMetricsOnce sync.Once
	workerMetrics     *WorkerMetrics
)

// Worker returns the singleton worker metrics registry.
func Worker() *WorkerMetrics {
	return WorkerWithConfig(Config{})
}

// WorkerWithConfig returns the singleton worker metrics registry using config labels.
func WorkerWithConfig(cfg Config) *WorkerMetrics {
	workerMetricsOnce.Do(func() {
		workerMetrics = newWorkerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workerMetrics
}

// ResetWorkerMetricsForTest resets the worker metrics singleton for tests.
func ResetWorkerMetricsForTest() {
	workerMetricsOnce = sync.Once{}
	workerMetrics = nil
}

func newWorkerMetrics(registerer prometheus.Registerer, cfg Config) *WorkerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "ledgerlink"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ledgerlink_worker_jobs_processed_total",
		Help:        "Jobs processed by type and outcome.",
		ConstLabels: constLabels,
	}, []string{"job_type", "outcome"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "ledgerlink_worker_job_duration_seconds",
		Help:        "Job dispatch latency by type.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"job_type"})
	claimBatch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "ledgerlink_worker_claim_batch_size",
		Help:        "Number of jobs claimed per worker cycle.",
		Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100},
		ConstLabels: constLabels,
	})
	deadLetters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ledgerlink_worker_dead_letters_total",
		Help:        "Jobs that exhausted their retry budget.",
		ConstLabels: constLabels,
	}, []string{"job_type"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "ledgerlink_worker_run_loop_lag_seconds",
		Help:        "Delay between scheduled and actual worker cycles.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		ConstLabels: constLabels,
	})

	for _, collector := range []prometheus.Collector{jobsProcessed, jobDuration, claimBatch, deadLetters, runLoopLag} {
		if err := registerer.Register(collector); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = are
				continue
			}
		}
	}

	return &WorkerMetrics{
		jobsProcessed: jobsProcessed,
		jobDuration:   jobDuration,
		claimBatch:    claimBatch,
		deadLetters:   deadLetters,
		runLoopLag:    runLoopLag,
	}
}

func (m *WorkerMetrics) IncJobProcessed(jobType, outcome string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

func (m *WorkerMetrics) ObserveJobDuration(jobType string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

func (m *WorkerMetrics) ObserveClaimBatch(n int) {
	if m == nil {
		return
	}
	m.claimBatch.Observe(float64(n))
}

func (m *WorkerMetrics) IncDeadLetter(jobType string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(jobType).Inc()
}

func (m *WorkerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(d.Seconds())
}
