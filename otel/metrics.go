package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"
)

// MetricsHandler translates job lifecycle events into OpenTelemetry
// metrics. It records counters and histograms for job executions,
// interruptions, cancellations, and durations.
type MetricsHandler struct {
	jobExecutions metric.Int64Counter
	jobFailures   metric.Int64Counter
	jobDuration   metric.Float64Histogram
	outputBytes   metric.Int64Counter

	mu      sync.Mutex
	started map[string]time.Time // jobKey -> start time
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter
// to create instruments for recording job metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	executions, err := meter.Int64Counter("ocrflow.job.executions",
		metric.WithDescription("Number of finished jobs by terminal state"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("ocrflow.job.interruptions",
		metric.WithDescription("Number of jobs ending interrupted"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("ocrflow.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	output, err := meter.Int64Counter("ocrflow.job.output.bytes",
		metric.WithDescription("Bytes of forwarded process output"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		jobExecutions: executions,
		jobFailures:   failures,
		jobDuration:   duration,
		outputBytes:   output,
		started:       make(map[string]time.Time),
	}, nil
}

// Handle processes a job event and records the appropriate metrics.
// It satisfies the events.Handler signature.
func (h *MetricsHandler) Handle(e engine.Event) {
	switch e.Kind {
	case engine.EventJobStarted:
		h.handleStarted(e)
	case engine.EventJobOutput:
		h.handleOutput(e)
	case engine.EventJobFinished:
		h.handleFinished(e)
	}
}

func (h *MetricsHandler) handleStarted(e engine.Event) {
	h.mu.Lock()
	h.started[e.JobKey] = e.Time
	h.mu.Unlock()
}

func (h *MetricsHandler) handleOutput(e engine.Event) {
	h.outputBytes.Add(context.Background(), int64(len(e.Message)),
		metric.WithAttributes(
			attribute.String("tool", e.Tool),
			attribute.String("stream", e.Stream),
		))
}

func (h *MetricsHandler) handleFinished(e engine.Event) {
	h.mu.Lock()
	startedAt, known := h.started[e.JobKey]
	delete(h.started, e.JobKey)
	h.mu.Unlock()

	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("tool", e.Tool),
		attribute.String("state", e.State.String()),
	)

	h.jobExecutions.Add(ctx, 1, attrs)
	if e.State == core.StateInterrupted {
		h.jobFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", e.Tool),
		))
	}
	if known {
		h.jobDuration.Record(ctx, e.Time.Sub(startedAt).Seconds(), attrs)
	}
}
