package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/folio-labs/ocrflow/catalog"
	"github.com/folio-labs/ocrflow/core"
)

// Engine errors.
var (
	ErrAlreadyStarted      = errors.New("engine: processor already started")
	ErrNotRunning          = errors.New("engine: processor is not running")
	ErrCanceledBeforeStart = errors.New("engine: job canceled before start")
)

const (
	// DefaultGracePeriod bounds the stop-then-kill window when a
	// descriptor does not declare its own.
	DefaultGracePeriod = 10 * time.Second

	// DefaultPollInterval is the cadence of the flush/cancellation
	// checkpoint loop.
	DefaultPollInterval = 100 * time.Millisecond
)

// Callbacks connects a processor to its caller. All callbacks are
// optional; a nil callback is skipped.
type Callbacks struct {
	// Stdout receives trimmed, non-blank standard-output text, once per
	// flush cycle.
	Stdout func(string)

	// Stderr receives trimmed, non-blank standard-error text, once per
	// flush cycle, and binding or exit diagnostics.
	Stderr func(string)

	// Progress receives the fractional progress counter. Reported
	// values never decrease and never exceed 1.0.
	Progress func(float64)

	// Canceled is the caller-owned cancellation predicate, polled at
	// checkpoints. Cancellation is cooperative, never preemptive.
	Canceled func() bool

	// Events receives engine lifecycle events.
	Events EventEmitter
}

// Processor runs one job of one tool. It owns the external process for
// the lifetime of the invocation; a Processor is used once and never
// shared across invocations.
//
// State transitions:
//
//	created --Initialize--> running --success--> completed
//	running --cancellation observed--> canceled
//	running --validation/domain failure--> interrupted
type Processor struct {
	descriptor   *catalog.Descriptor
	jobKey       string
	pollInterval time.Duration
	seq          atomic.Uint64

	mu       sync.Mutex
	state    core.ProcessState
	progress float64
	cb       Callbacks

	completeOnce sync.Once
	onComplete   []func(core.ProcessState)
}

// NewProcessor creates a processor for one invocation of the given
// tool. The job key is generated once here and is stable for the job's
// lifetime.
func NewProcessor(descriptor *catalog.Descriptor) *Processor {
	return &Processor{
		descriptor:   descriptor,
		jobKey:       uuid.NewString(),
		pollInterval: DefaultPollInterval,
		state:        core.StateCreated,
	}
}

// JobKey returns the opaque unique id of this job instance.
func (p *Processor) JobKey() string {
	return p.jobKey
}

// Descriptor returns the tool descriptor this processor runs.
func (p *Processor) Descriptor() *catalog.Descriptor {
	return p.descriptor
}

// State returns the current lifecycle state.
func (p *Processor) State() core.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Progress returns the current fractional progress.
func (p *Processor) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// SetPollInterval overrides the checkpoint cadence. Effective only
// before Initialize.
func (p *Processor) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		p.pollInterval = interval
	}
}

// OnComplete registers bookkeeping to run exactly once when the job
// reaches any terminal state. Registration must happen before
// Initialize.
func (p *Processor) OnComplete(fn func(core.ProcessState)) {
	if fn != nil {
		p.onComplete = append(p.onComplete, fn)
	}
}

// Initialize moves the job from created to running and registers the
// caller's callbacks. If the job was already marked canceled at entry,
// Initialize fails, the job reports canceled, and no external process
// is ever constructed or launched.
func (p *Processor) Initialize(cb Callbacks) error {
	p.mu.Lock()
	if p.state != core.StateCreated {
		p.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, p.state)
	}
	p.cb = cb

	if cb.Canceled != nil && cb.Canceled() {
		p.state = core.StateCanceled
		p.mu.Unlock()
		p.complete()
		return ErrCanceledBeforeStart
	}

	p.state = core.StateRunning
	p.mu.Unlock()

	p.emit(NewEvent(EventJobStarted, p.jobKey).
		WithTool(p.descriptor.ID).
		WithState(core.StateRunning))
	return nil
}

// Interrupt moves a running job to the interrupted terminal state after
// a validation or domain failure. The diagnostic is forwarded through
// the error callback; it never propagates as a panic or error across
// the execution boundary.
func (p *Processor) Interrupt(diag core.Diagnostic) core.ProcessState {
	p.mu.Lock()
	if p.state != core.StateRunning {
		state := p.state
		p.mu.Unlock()
		return state
	}
	p.state = core.StateInterrupted
	cb := p.cb
	p.mu.Unlock()

	if cb.Stderr != nil {
		cb.Stderr(diag.Error())
	}
	p.complete()
	return core.StateInterrupted
}

// Execute builds and launches the external command and blocks until the
// process exits or cancellation is observed. The returned state is the
// terminal state of the job; completion bookkeeping has already run
// when Execute returns.
func (p *Processor) Execute(ctx context.Context, inv catalog.Invocation) (core.ProcessState, error) {
	p.mu.Lock()
	if p.state != core.StateRunning {
		state := p.state
		p.mu.Unlock()
		return state, fmt.Errorf("%w: state %s", ErrNotRunning, state)
	}
	cb := p.cb
	p.mu.Unlock()

	defer p.complete()

	program, argv := p.descriptor.BuildCommand(inv)
	p.advance(cb) // command built

	// #nosec G204 -- program and argv come from the declared descriptor.
	cmd := exec.Command(program, argv...)
	stdout := &streamBuffer{}
	stderr := &streamBuffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		diag := core.Diagnostic{
			Code:     core.CodeToolMissing,
			Severity: core.SeverityError,
			Message:  fmt.Sprintf("launching %s: %v", program, err),
		}
		p.setState(core.StateInterrupted)
		if cb.Stderr != nil {
			cb.Stderr(diag.Error())
		}
		return core.StateInterrupted, diag
	}
	p.advance(cb) // process launched

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case waitErr := <-done:
			p.flush(cb, stdout, stderr)
			p.advance(cb) // process exited
			return p.finishExited(cb, waitErr, stderr)

		case <-ticker.C:
			p.flush(cb, stdout, stderr)
			if p.cancelObserved(ctx, cb) {
				p.terminate(cmd, done)
				p.flush(cb, stdout, stderr)
				p.setState(core.StateCanceled)
				return core.StateCanceled, nil
			}
		}
	}
}

// cancelObserved polls the caller predicate and the context at a
// checkpoint.
func (p *Processor) cancelObserved(ctx context.Context, cb Callbacks) bool {
	if cb.Canceled != nil && cb.Canceled() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// terminate asks the external process to stop and escalates to a kill
// after the descriptor's grace period.
func (p *Processor) terminate(cmd *exec.Cmd, done <-chan error) {
	grace := p.descriptor.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
		<-done
		return
	}

	select {
	case <-done:
	case <-time.After(grace):
		_ = cmd.Process.Kill()
		<-done
	}
}

// finishExited maps the process exit to a terminal state per the
// descriptor's exit policy.
func (p *Processor) finishExited(cb Callbacks, waitErr error, stderr *streamBuffer) (core.ProcessState, error) {
	if waitErr == nil {
		p.setProgress(cb, 1.0)
		p.setState(core.StateCompleted)
		return core.StateCompleted, nil
	}

	// Surface the failure through the error callback. Stream text was
	// already forwarded by the flush cycles; the exit error itself is
	// forwarded here so a silent crash is still visible.
	message := strings.TrimSpace(waitErr.Error())
	if cb.Stderr != nil && message != "" {
		cb.Stderr(message)
	}

	if p.descriptor.ExitPolicy == catalog.ExitPolicyInterrupt {
		diag := core.Diagnostic{
			Code:     core.CodeExitStatus,
			Severity: core.SeverityError,
			Message:  fmt.Sprintf("%s exited abnormally: %s", p.descriptor.Program, message),
		}
		p.setState(core.StateInterrupted)
		return core.StateInterrupted, diag
	}

	// ExitPolicyIgnore: the exit status alone does not force a distinct
	// terminal state.
	p.setProgress(cb, 1.0)
	p.setState(core.StateCompleted)
	return core.StateCompleted, nil
}

// flush forwards pending output of both streams, each at most once per
// cycle and only when the trimmed text is non-blank.
func (p *Processor) flush(cb Callbacks, stdout, stderr *streamBuffer) {
	if text := stdout.Flush(); text != "" {
		if cb.Stdout != nil {
			cb.Stdout(text)
		}
		p.emit(NewEvent(EventJobOutput, p.jobKey).
			WithTool(p.descriptor.ID).
			WithState(core.StateRunning).
			WithOutput("stdout", text))
	}
	if text := stderr.Flush(); text != "" {
		if cb.Stderr != nil {
			cb.Stderr(text)
		}
		p.emit(NewEvent(EventJobOutput, p.jobKey).
			WithTool(p.descriptor.ID).
			WithState(core.StateRunning).
			WithOutput("stderr", text))
	}
}

// advance moves the progress counter by the descriptor's weight,
// capped at 1.0.
func (p *Processor) advance(cb Callbacks) {
	if p.descriptor.Weight <= 0 {
		return
	}
	p.mu.Lock()
	next := p.progress + p.descriptor.Weight
	if next > 1.0 {
		next = 1.0
	}
	if next == p.progress {
		p.mu.Unlock()
		return
	}
	p.progress = next
	p.mu.Unlock()

	p.reportProgress(cb, next)
}

// setProgress raises the progress counter to value; it never reports a
// decrease.
func (p *Processor) setProgress(cb Callbacks, value float64) {
	p.mu.Lock()
	if value <= p.progress {
		p.mu.Unlock()
		return
	}
	if value > 1.0 {
		value = 1.0
	}
	p.progress = value
	p.mu.Unlock()

	p.reportProgress(cb, value)
}

func (p *Processor) reportProgress(cb Callbacks, value float64) {
	if cb.Progress != nil {
		cb.Progress(value)
	}
	p.emit(NewEvent(EventJobProgress, p.jobKey).
		WithTool(p.descriptor.ID).
		WithState(core.StateRunning).
		WithProgress(value))
}

func (p *Processor) setState(state core.ProcessState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// complete runs the registered bookkeeping exactly once, on every exit
// path.
func (p *Processor) complete() {
	p.completeOnce.Do(func() {
		p.mu.Lock()
		state := p.state
		progress := p.progress
		hooks := p.onComplete
		p.mu.Unlock()

		p.emit(NewEvent(EventJobFinished, p.jobKey).
			WithTool(p.descriptor.ID).
			WithState(state).
			WithProgress(progress))

		for _, fn := range hooks {
			fn(state)
		}
	})
}

func (p *Processor) emit(e Event) {
	p.mu.Lock()
	emitter := p.cb.Events
	p.mu.Unlock()
	if emitter == nil {
		return
	}
	e.Seq = p.seq.Add(1)
	emitter(e)
}

// streamBuffer accumulates process output between flush cycles.
type streamBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *streamBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(data)
}

// Flush returns the trimmed text accumulated since the previous flush
// and resets the buffer. Blank accumulations yield "".
func (b *streamBuffer) Flush() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.TrimSpace(b.buf.String())
	b.buf.Reset()
	return text
}
