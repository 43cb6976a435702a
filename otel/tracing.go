// Package otel provides OpenTelemetry integration for ocrflow job
// events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"
)

// TracingHandler translates job lifecycle events into OpenTelemetry
// spans. It maintains a map of active job spans, creating one when a
// job starts and ending it when the job reaches a terminal state.
type TracingHandler struct {
	tracer trace.Tracer

	mu       sync.RWMutex
	jobSpans map[string]trace.Span // jobKey -> span
}

// NewTracingHandler creates a TracingHandler that uses the given tracer
// to create spans from job events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:   tracer,
		jobSpans: make(map[string]trace.Span),
	}
}

// Handle processes a job event and creates or ends spans accordingly.
// It satisfies the events.Handler signature.
func (h *TracingHandler) Handle(e engine.Event) {
	switch e.Kind {
	case engine.EventJobStarted:
		h.handleStarted(e)
	case engine.EventJobOutput:
		h.handleOutput(e)
	case engine.EventJobProgress:
		h.handleProgress(e)
	case engine.EventJobFinished:
		h.handleFinished(e)
	}
}

// handleStarted creates the root span for the job.
func (h *TracingHandler) handleStarted(e engine.Event) {
	spanName := "job:" + e.JobKey
	if e.Tool != "" {
		spanName = "job:" + e.Tool
	}

	_, span := h.tracer.Start(context.Background(), spanName,
		trace.WithAttributes(
			attribute.String("ocrflow.job_key", e.JobKey),
			attribute.String("ocrflow.tool", e.Tool),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.jobSpans[e.JobKey] = span
	h.mu.Unlock()
}

// handleOutput adds a span event for forwarded process output.
func (h *TracingHandler) handleOutput(e engine.Event) {
	h.mu.RLock()
	span, ok := h.jobSpans[e.JobKey]
	h.mu.RUnlock()

	if !ok {
		return
	}
	span.AddEvent("output",
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(
			attribute.String("ocrflow.stream", e.Stream),
			attribute.Int("ocrflow.output_bytes", len(e.Message)),
		),
	)
}

// handleProgress records the latest progress on the span.
func (h *TracingHandler) handleProgress(e engine.Event) {
	h.mu.RLock()
	span, ok := h.jobSpans[e.JobKey]
	h.mu.RUnlock()

	if !ok {
		return
	}
	span.SetAttributes(attribute.Float64("ocrflow.progress", e.Progress))
}

// handleFinished ends the job span with a status derived from the
// terminal state.
func (h *TracingHandler) handleFinished(e engine.Event) {
	h.mu.Lock()
	span, ok := h.jobSpans[e.JobKey]
	if ok {
		delete(h.jobSpans, e.JobKey)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	span.SetAttributes(attribute.String("ocrflow.state", e.State.String()))

	switch e.State {
	case core.StateInterrupted:
		msg := e.Message
		if msg == "" {
			msg = "job interrupted"
		}
		span.SetStatus(codes.Error, msg)
		span.RecordError(spanError(msg), trace.WithTimestamp(e.Time))
	default:
		// Completed and canceled are both orderly endings.
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.Time))
}

// ActiveJobSpanContext returns the SpanContext for the active span of
// jobKey. Returns an empty SpanContext if no span is active.
func (h *TracingHandler) ActiveJobSpanContext(jobKey string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.jobSpans[jobKey]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
