package otel_test

import (
	"testing"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"
	flowotel "github.com/folio-labs/ocrflow/otel"
)

// newTestTracer returns a tracer backed by an in-memory span exporter.
func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	return exporter, tp
}

func TestTracingHandler_JobStartedCreatesSpan(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(engine.Event{
		Kind:   engine.EventJobStarted,
		JobKey: "job-1",
		Tool:   "tesseract-recognize",
		State:  core.StateRunning,
		Time:   now,
	})

	sc := h.ActiveJobSpanContext("job-1")
	if !sc.IsValid() {
		t.Fatal("expected valid span context after job started")
	}

	h.Handle(engine.Event{
		Kind:   engine.EventJobFinished,
		JobKey: "job-1",
		Tool:   "tesseract-recognize",
		State:  core.StateCompleted,
		Time:   now.Add(100 * time.Millisecond),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Name != "job:tesseract-recognize" {
		t.Errorf("expected span name 'job:tesseract-recognize', got %q", span.Name)
	}

	found := false
	for _, attr := range span.Attributes {
		if string(attr.Key) == "ocrflow.job_key" && attr.Value.AsString() == "job-1" {
			found = true
		}
	}
	if !found {
		t.Error("expected ocrflow.job_key attribute on job span")
	}
}

func TestTracingHandler_JobStartedUsesJobKeyWhenNoTool(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(engine.Event{Kind: engine.EventJobStarted, JobKey: "job-anon", Time: now})
	h.Handle(engine.Event{
		Kind:   engine.EventJobFinished,
		JobKey: "job-anon",
		State:  core.StateCompleted,
		Time:   now.Add(10 * time.Millisecond),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "job:job-anon" {
		t.Errorf("expected span name 'job:job-anon', got %q", spans[0].Name)
	}
}

func TestTracingHandler_OutputBecomesSpanEvent(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(engine.Event{Kind: engine.EventJobStarted, JobKey: "job-1", Tool: "ocropy-nlbin", Time: now})
	h.Handle(engine.Event{
		Kind:    engine.EventJobOutput,
		JobKey:  "job-1",
		Tool:    "ocropy-nlbin",
		Stream:  "stderr",
		Message: "binarizing page 4",
		Time:    now.Add(5 * time.Millisecond),
	})
	h.Handle(engine.Event{
		Kind:   engine.EventJobFinished,
		JobKey: "job-1",
		State:  core.StateCompleted,
		Time:   now.Add(10 * time.Millisecond),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if len(spans[0].Events) == 0 {
		t.Fatal("expected at least one span event for output")
	}

	ev := spans[0].Events[0]
	if ev.Name != "output" {
		t.Errorf("expected span event 'output', got %q", ev.Name)
	}
	foundStream := false
	for _, attr := range ev.Attributes {
		if string(attr.Key) == "ocrflow.stream" && attr.Value.AsString() == "stderr" {
			foundStream = true
		}
	}
	if !foundStream {
		t.Error("expected ocrflow.stream attribute on output event")
	}
}

func TestTracingHandler_InterruptedSetsErrorStatus(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(engine.Event{Kind: engine.EventJobStarted, JobKey: "job-fail", Tool: "calamari-recognize", Time: now})
	h.Handle(engine.Event{
		Kind:    engine.EventJobFinished,
		JobKey:  "job-fail",
		State:   core.StateInterrupted,
		Message: "calamari-predict exited abnormally",
		Time:    now.Add(20 * time.Millisecond),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("expected Error status, got %v", spans[0].Status.Code)
	}
	if spans[0].Status.Description != "calamari-predict exited abnormally" {
		t.Errorf("unexpected status description %q", spans[0].Status.Description)
	}

	foundException := false
	for _, ev := range spans[0].Events {
		if ev.Name == "exception" {
			foundException = true
		}
	}
	if !foundException {
		t.Error("expected exception event on interrupted span")
	}
}

func TestTracingHandler_CanceledEndsOk(t *testing.T) {
	exporter, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(engine.Event{Kind: engine.EventJobStarted, JobKey: "job-c", Tool: "tesseract-recognize", Time: now})
	h.Handle(engine.Event{
		Kind:   engine.EventJobFinished,
		JobKey: "job-c",
		State:  core.StateCanceled,
		Time:   now.Add(20 * time.Millisecond),
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Ok {
		t.Errorf("expected Ok status on canceled job, got %v", spans[0].Status.Code)
	}

	foundState := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "ocrflow.state" && attr.Value.AsString() == "canceled" {
			foundState = true
		}
	}
	if !foundState {
		t.Error("expected ocrflow.state attribute on finished span")
	}
}

func TestTracingHandler_FinishedRemovesActiveSpan(t *testing.T) {
	_, tp := newTestTracer()
	h := flowotel.NewTracingHandler(tp.Tracer("test"))

	now := time.Now()

	h.Handle(engine.Event{Kind: engine.EventJobStarted, JobKey: "job-1", Time: now})
	if !h.ActiveJobSpanContext("job-1").IsValid() {
		t.Fatal("expected active span before finish")
	}

	h.Handle(engine.Event{
		Kind:   engine.EventJobFinished,
		JobKey: "job-1",
		State:  core.StateCompleted,
		Time:   now.Add(10 * time.Millisecond),
	})
	if h.ActiveJobSpanContext("job-1").IsValid() {
		t.Error("expected no active span after finish")
	}

	// Events for unknown jobs are ignored, not a panic.
	h.Handle(engine.Event{Kind: engine.EventJobOutput, JobKey: "job-1", Message: "late"})
	h.Handle(engine.Event{Kind: engine.EventJobFinished, JobKey: "job-unknown", State: core.StateCompleted})
}
