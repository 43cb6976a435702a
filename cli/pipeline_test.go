package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/folio-labs/ocrflow/catalog"
	"github.com/folio-labs/ocrflow/config"
	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/daemon"
	"github.com/folio-labs/ocrflow/engine"
)

// copyDescriptor writes the input file to the output path via /bin/sh.
func copyDescriptor() *catalog.Descriptor {
	return &catalog.Descriptor{
		ID:      "copy",
		Program: "/bin/sh",
		Command: func(inv catalog.Invocation) []string {
			return []string{"-c", fmt.Sprintf("cat %q > %q", inv.InputPath, inv.OutputPath)}
		},
		Weight:      0.5,
		GracePeriod: 200 * time.Millisecond,
	}
}

func TestEventPipelinePersistsJobEvents(t *testing.T) {
	for _, backend := range []string{"mem", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			dbPath := ""
			if backend == "sqlite" {
				dbPath = filepath.Join(t.TempDir(), "events.db")
			}
			pipeline, err := newEventPipeline(dbPath)
			if err != nil {
				t.Fatalf("newEventPipeline: %v", err)
			}

			inputPath := filepath.Join(t.TempDir(), "page1.png")
			if err := os.WriteFile(inputPath, []byte("image data"), 0o600); err != nil {
				t.Fatal(err)
			}

			var jobKey string
			runner := &daemon.ToolRunner{
				Descriptor:   copyDescriptor(),
				Config:       config.New(nil),
				Target:       config.Target{Name: "test"},
				OutputFolder: t.TempDir(),
				Observe: func(p *engine.Processor) {
					jobKey = p.JobKey()
					pipeline.observe(p)
				},
				Events: pipeline.dispatch,
			}

			ctx := context.Background()
			if err := runner.Submit(ctx, core.Page{ID: "p1", Path: inputPath}); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if jobKey == "" {
				t.Fatal("observe hook never ran")
			}

			// Store appends ride the bus asynchronously; wait for the
			// finished event to land.
			deadline := time.Now().Add(2 * time.Second)
			var stored []engine.Event
			for {
				stored, err = pipeline.store.List(ctx, jobKey, 0, 0)
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				if n := len(stored); n > 0 && stored[n-1].Kind == engine.EventJobFinished {
					break
				}
				if time.Now().After(deadline) {
					t.Fatalf("stored events = %+v, want a finished event", stored)
				}
				time.Sleep(5 * time.Millisecond)
			}

			if stored[0].Kind != engine.EventJobStarted {
				t.Errorf("first stored event = %s, want %s", stored[0].Kind, engine.EventJobStarted)
			}
			last := stored[len(stored)-1]
			if last.State != core.StateCompleted {
				t.Errorf("final state = %s, want completed", last.State)
			}

			// Attach tears the registration down at completion.
			if pipeline.controller.Registered(jobKey) {
				t.Error("controller still registered after job completion")
			}

			if err := pipeline.close(ctx); err != nil {
				t.Fatalf("pipeline close: %v", err)
			}
		})
	}
}

func TestEventPipelineCloseWaitsForDrain(t *testing.T) {
	pipeline, err := newEventPipeline("")
	if err != nil {
		t.Fatalf("newEventPipeline: %v", err)
	}

	pipeline.controller.Register("job-1", pipeline.bus.Publish)
	for i := 1; i <= 10; i++ {
		e := engine.NewEvent(engine.EventJobOutput, "job-1")
		e.Seq = uint64(i)
		pipeline.dispatch(e)
	}

	// Give the controller queue a moment to publish before the bus
	// closes; close then blocks until the store subscription drains.
	time.Sleep(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pipeline.close(ctx); err != nil {
		t.Fatalf("pipeline close: %v", err)
	}

	stored, err := pipeline.store.List(context.Background(), "job-1", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 10 {
		t.Fatalf("stored %d events, want 10", len(stored))
	}
}
