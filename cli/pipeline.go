package cli

import (
	"context"
	"fmt"

	"github.com/folio-labs/ocrflow/engine"
	"github.com/folio-labs/ocrflow/events"
)

// eventPipeline is the job-notification chain of the watch daemon:
// engine events are dispatched through the controller to a per-job
// handler publishing on the bus, and a global bus subscription persists
// every event to the store for replay.
type eventPipeline struct {
	controller *events.Controller
	bus        events.Bus
	store      events.Store
	sub        events.Subscription
	drained    chan struct{}
	closeStore func() error
}

// newEventPipeline assembles the chain. An empty dbPath keeps events in
// memory; otherwise they persist to a SQLite database at that path.
func newEventPipeline(dbPath string) (*eventPipeline, error) {
	p := &eventPipeline{
		controller: events.NewController(),
		bus:        events.NewMemBus(events.MemBusConfig{}),
		drained:    make(chan struct{}),
	}

	if dbPath == "" {
		p.store = events.NewMemStore()
		p.closeStore = func() error { return nil }
	} else {
		store, err := events.NewSQLiteStore(events.SQLiteStoreConfig{DSN: dbPath})
		if err != nil {
			return nil, fmt.Errorf("open event store: %w", err)
		}
		p.store = store
		p.closeStore = store.Close
	}

	p.sub = p.bus.SubscribeAll()
	go func() {
		defer close(p.drained)
		// Background context so events buffered at shutdown still
		// reach the store; persistence is best-effort and must not
		// stall delivery.
		ctx := context.Background()
		for e := range p.sub.Events() {
			_ = p.store.Append(ctx, e)
		}
	}()
	return p, nil
}

// observe attaches the pipeline to one job's processor. The
// registration tears itself down when the job completes.
func (p *eventPipeline) observe(proc *engine.Processor) {
	p.controller.Attach(proc, p.bus.Publish)
}

// dispatch feeds one event into the controller.
func (p *eventPipeline) dispatch(e engine.Event) {
	p.controller.Dispatch(e)
}

// close shuts the bus, waits for queued events to reach the store, then
// closes the store.
func (p *eventPipeline) close(ctx context.Context) error {
	if err := p.bus.Close(); err != nil {
		return err
	}
	select {
	case <-p.drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.closeStore()
}
