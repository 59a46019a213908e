package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"plantledger/internal/logger"
)

// PrometheusRecorder counts ledger operations by outcome and records their
// latency.
type PrometheusRecorder struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates the ledger metrics and registers them with
// registerer. A nil registerer leaves them unregistered.
func NewPrometheusRecorder(registerer prometheus.Registerer, namespace string) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total number of ledger operations by outcome",
			},
			[]string{"operation", "status"}, // status: success, error
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Time taken by ledger operations including commit",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
	}
	if registerer != nil {
		if err := registerer.Register(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Describe implements prometheus.Collector.
func (r *PrometheusRecorder) Describe(ch chan<- *prometheus.Desc) {
	r.operationsTotal.Describe(ch)
	r.operationDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (r *PrometheusRecorder) Collect(ch chan<- prometheus.Metric) {
	r.operationsTotal.Collect(ch)
	r.operationDuration.Collect(ch)
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operationsTotal.WithLabelValues(operation, status).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// LogTracer emits one trace-level record per finished span.
type LogTracer struct {
	log logger.Logger
}

// NewLogTracer returns a tracer writing spans to log under the "trace" module.
func NewLogTracer(log logger.Logger) *LogTracer {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &LogTracer{log: log.Module("trace")}
}

// Start implements Tracer.
func (t *LogTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &logSpan{
		log:       t.log.WithContext(ctx),
		operation: operation,
		started:   time.Now(),
	}
}

type logSpan struct {
	log       logger.Logger
	operation string
	started   time.Time
}

func (s *logSpan) End(err error) {
	fields := []logger.Field{
		logger.String("operation", s.operation),
		logger.Duration("duration", time.Since(s.started)),
	}
	if err != nil {
		s.log.Trace("span failed", append(fields, logger.Error(err))...)
		return
	}
	s.log.Trace("span finished", fields...)
}
