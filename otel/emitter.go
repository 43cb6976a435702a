package otel

import (
	"github.com/folio-labs/ocrflow/engine"
)

// EnrichEmitter wraps an EventEmitter with OpenTelemetry trace context.
// When events are emitted, it looks up the active job span from the
// TracingHandler and populates the TraceID and SpanID fields on the
// event. When no span is active, the event passes through unchanged.
func EnrichEmitter(emit engine.EventEmitter, tracing *TracingHandler) engine.EventEmitter {
	return func(e engine.Event) {
		if e.JobKey != "" {
			sc := tracing.ActiveJobSpanContext(e.JobKey)
			if sc.IsValid() {
				e.TraceID = sc.TraceID().String()
				e.SpanID = sc.SpanID().String()
			}
		}
		emit(e)
	}
}
