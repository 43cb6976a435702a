// Package engine executes external-tool-backed processing steps. It
// contains the argument binder that turns a caller-supplied argument bag
// into validated processor arguments, and the processor state machine
// that launches the external program, streams its output, reports
// progress, and honors cooperative cancellation.
package engine

import (
	"time"

	"github.com/folio-labs/ocrflow/core"
)

// EventKind identifies the type of event emitted by the engine.
type EventKind string

const (
	// EventJobStarted is emitted when a job enters the running state.
	EventJobStarted EventKind = "job_started"

	// EventJobOutput is emitted when a flush cycle forwards non-blank
	// output from one of the process streams.
	EventJobOutput EventKind = "job_output"

	// EventJobProgress is emitted when the progress counter advances.
	EventJobProgress EventKind = "job_progress"

	// EventJobFinished is emitted exactly once when a job reaches a
	// terminal state.
	EventJobFinished EventKind = "job_finished"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured record of job lifecycle activity. Consumers of
// the asynchronous execution variant receive these through the event
// controller; they must not assume same-goroutine delivery.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// JobKey is the opaque unique id of the job instance.
	JobKey string

	// Tool is the descriptor identifier of the executing tool.
	Tool string

	// State is the job state at emission time.
	State core.ProcessState

	// Seq orders events within one job.
	Seq uint64

	// Time is when the event occurred.
	Time time.Time

	// Progress is the fractional progress in [0, 1].
	Progress float64

	// Stream names the source stream for output events ("stdout" or
	// "stderr"); empty otherwise.
	Stream string

	// Message carries forwarded output text or a diagnostic summary.
	Message string

	// TraceID and SpanID correlate the event with an active trace span
	// when tracing is enabled; empty otherwise.
	TraceID string
	SpanID  string
}

// NewEvent creates an event with the current timestamp.
func NewEvent(kind EventKind, jobKey string) Event {
	return Event{
		Kind:   kind,
		JobKey: jobKey,
		Time:   time.Now(),
	}
}

// WithTool sets the tool identifier.
func (e Event) WithTool(tool string) Event {
	e.Tool = tool
	return e
}

// WithState sets the job state.
func (e Event) WithState(state core.ProcessState) Event {
	e.State = state
	return e
}

// WithProgress sets the progress value.
func (e Event) WithProgress(progress float64) Event {
	e.Progress = progress
	return e
}

// WithOutput sets the stream name and forwarded text.
func (e Event) WithOutput(stream, message string) Event {
	e.Stream = stream
	e.Message = message
	return e
}

// EventEmitter is a function type for emitting engine events.
type EventEmitter func(Event)
