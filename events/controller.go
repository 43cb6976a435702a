// Package events provides the asynchronous job-notification layer of
// ocrflow: a controller mapping job keys to lifecycle-event handlers, a
// fan-out bus for observers, and stores that persist job events for
// replay.
package events

import (
	"sync"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"
)

// Handler receives job lifecycle events. Dispatch is asynchronous
// relative to registration, but events for one job key reach the
// handler in dispatch order.
type Handler func(engine.Event)

// HandlerNone is the id value meaning "not registered".
const HandlerNone int64 = 0

// dispatchBufferSize bounds the per-registration event queue. A handler
// that falls this far behind loses events instead of stalling the
// engine.
const dispatchBufferSize = 256

// registration owns one handler's delivery queue. A single goroutine
// drains the queue, so the handler observes events in dispatch order.
type registration struct {
	id    int64
	queue chan engine.Event

	mu     sync.Mutex
	closed bool
}

// send enqueues an event without blocking; events to a closed or full
// registration are dropped.
func (r *registration) send(e engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	select {
	case r.queue <- e:
	default:
		// Drop when the handler is not keeping up.
	}
}

// close shuts the queue, guarded against double-close. Events already
// queued are still delivered before the drain goroutine exits.
func (r *registration) close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.queue)
	}
}

// Controller is the thread-safe registry mapping job keys to lifecycle
// handlers for the asynchronous execution variant. Concurrent
// register/unregister calls for different job keys do not interfere and
// need no external synchronization.
type Controller struct {
	mu       sync.Mutex
	nextID   int64
	byID     map[int64]string
	byJobKey map[string]*registration
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{
		byID:     make(map[int64]string),
		byJobKey: make(map[string]*registration),
	}
}

// Register installs a handler for jobKey and returns its strictly
// positive handler id. Registering a second handler for the same job
// key replaces the first; a job instance owns exactly one active
// handler under normal use.
func (c *Controller) Register(jobKey string, handler Handler) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if previous, ok := c.byJobKey[jobKey]; ok {
		delete(c.byID, previous.id)
		previous.close()
	}

	c.nextID++
	id := c.nextID
	reg := &registration{
		id:    id,
		queue: make(chan engine.Event, dispatchBufferSize),
	}
	go func() {
		for e := range reg.queue {
			handler(e)
		}
	}()

	c.byID[id] = jobKey
	c.byJobKey[jobKey] = reg
	return id
}

// Unregister removes the handler with the given id. Ids at or below
// HandlerNone are a no-op, never an error.
func (c *Controller) Unregister(id int64) {
	if id <= HandlerNone {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	jobKey, ok := c.byID[id]
	if !ok {
		return
	}
	delete(c.byID, id)
	if current, ok := c.byJobKey[jobKey]; ok && current.id == id {
		delete(c.byJobKey, jobKey)
		current.close()
	}
}

// Registered reports whether a handler is active for jobKey.
func (c *Controller) Registered(jobKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byJobKey[jobKey]
	return ok
}

// Dispatch delivers an event to the handler registered for its job key.
// Delivery is asynchronous but preserves dispatch order per job key.
// Events for unregistered keys are dropped.
func (c *Controller) Dispatch(e engine.Event) {
	c.mu.Lock()
	reg, ok := c.byJobKey[e.JobKey]
	c.mu.Unlock()

	if !ok {
		return
	}
	reg.send(e)
}

// Emitter adapts the controller to the engine's emitter type.
func (c *Controller) Emitter() engine.EventEmitter {
	return c.Dispatch
}

// Attach registers a handler for a processor's job and tears the
// registration down when the job reaches any terminal state, on every
// exit path. The returned id is already scheduled for removal; callers
// keep it only for early unregistration.
func (c *Controller) Attach(p *engine.Processor, handler Handler) int64 {
	id := c.Register(p.JobKey(), handler)
	p.OnComplete(func(core.ProcessState) {
		c.Unregister(id)
	})
	return id
}
