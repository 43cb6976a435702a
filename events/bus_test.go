package events

import (
	"testing"
	"time"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"
)

func waitEvent(t *testing.T, sub Subscription) engine.Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
		return engine.Event{}
	}
}

func TestMemBusPerJobSubscription(t *testing.T) {
	bus := NewMemBus(MemBusConfig{SubscriberBufferSize: 8})
	defer bus.Close()

	subA := bus.Subscribe("job-a")
	defer subA.Close()
	subB := bus.Subscribe("job-b")
	defer subB.Close()

	bus.Publish(engine.NewEvent(engine.EventJobStarted, "job-a").WithState(core.StateRunning))

	e := waitEvent(t, subA)
	if e.JobKey != "job-a" || e.Kind != engine.EventJobStarted {
		t.Errorf("got event %+v", e)
	}

	select {
	case e := <-subB.Events():
		t.Errorf("job-b subscriber received foreign event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemBusGlobalSubscription(t *testing.T) {
	bus := NewMemBus(MemBusConfig{SubscriberBufferSize: 8})
	defer bus.Close()

	all := bus.SubscribeAll()
	defer all.Close()

	bus.Publish(engine.NewEvent(engine.EventJobStarted, "job-a"))
	bus.Publish(engine.NewEvent(engine.EventJobFinished, "job-b"))

	first := waitEvent(t, all)
	second := waitEvent(t, all)
	if first.JobKey != "job-a" || second.JobKey != "job-b" {
		t.Errorf("global subscriber saw %q then %q", first.JobKey, second.JobKey)
	}
}

func TestMemBusSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewMemBus(MemBusConfig{SubscriberBufferSize: 1})
	defer bus.Close()

	sub := bus.Subscribe("job-a")
	defer sub.Close()

	// Nobody drains; the second publish must not block.
	done := make(chan struct{})
	go func() {
		bus.Publish(engine.NewEvent(engine.EventJobOutput, "job-a"))
		bus.Publish(engine.NewEvent(engine.EventJobOutput, "job-a"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestMemBusCloseSignalsSubscribers(t *testing.T) {
	bus := NewMemBus(MemBusConfig{})
	sub := bus.Subscribe("job-a")

	// A consumer ranging over Events() must terminate when the bus
	// closes.
	done := make(chan struct{})
	go func() {
		for range sub.Events() {
		}
		close(done)
	}()

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("range over Events() still blocked after bus close")
	}

	// Publishing after close is a silent no-op.
	bus.Publish(engine.NewEvent(engine.EventJobStarted, "job-a"))

	if _, ok := <-sub.Events(); ok {
		t.Fatal("subscriber channel still open after bus close")
	}
}

func TestMemBusCloseTwiceIsSafe(t *testing.T) {
	bus := NewMemBus(MemBusConfig{})
	sub := bus.Subscribe("job-a")

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("sub.Close after bus close: %v", err)
	}
}

func TestMemBusSubscriptionClose(t *testing.T) {
	bus := NewMemBus(MemBusConfig{SubscriberBufferSize: 8})
	defer bus.Close()

	sub := bus.Subscribe("job-a")
	if err := sub.Close(); err != nil {
		t.Fatalf("sub.Close: %v", err)
	}

	bus.Publish(engine.NewEvent(engine.EventJobStarted, "job-a"))

	select {
	case e, ok := <-sub.Events():
		if ok {
			t.Errorf("closed subscription received %+v", e)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
