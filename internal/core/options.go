package core

import (
	"context"
	"time"

	"plantledger/internal/blob"
	"plantledger/internal/logger"
)

// Clock supplies the current time to the ledger.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder receives one observation per ledger operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span around a ledger operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

// Option customizes a Ledger.
type Option func(*ledgerOptions)

type ledgerOptions struct {
	clock       Clock
	logger      logger.Logger
	metrics     MetricsRecorder
	tracer      Tracer
	blobs       blob.Store
	codeRetries int
}

func defaultLedgerOptions() ledgerOptions {
	return ledgerOptions{
		clock:       ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:      logger.NewDiscard(),
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		codeRetries: 5,
	}
}

// WithClock overrides the time source used for default dates.
func WithClock(clock Clock) Option {
	return func(o *ledgerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the logger. The ledger logs under the "ledger" module.
func WithLogger(log logger.Logger) Option {
	return func(o *ledgerOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithMetricsRecorder wires a metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *ledgerOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer wires a tracer.
func WithTracer(t Tracer) Option {
	return func(o *ledgerOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithBlobStore sets the image file store. Image operations fail without one.
func WithBlobStore(store blob.Store) Option {
	return func(o *ledgerOptions) {
		o.blobs = store
	}
}

// WithCodeRetries bounds how often a colliding record code is regenerated.
func WithCodeRetries(n int) Option {
	return func(o *ledgerOptions) {
		if n > 0 {
			o.codeRetries = n
		}
	}
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
