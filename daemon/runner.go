package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/folio-labs/ocrflow/catalog"
	"github.com/folio-labs/ocrflow/config"
	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"
	"github.com/folio-labs/ocrflow/model"
)

// ToolRunner submits hotfolder pages to one catalog tool. Every page
// becomes its own job with a fresh processor; the supplied argument bag
// is shared across pages and bound anew per job.
type ToolRunner struct {
	Descriptor *catalog.Descriptor
	Config     *config.Configuration
	Target     config.Target

	// OutputFolder receives one result file per page.
	OutputFolder string

	// OutputSuffix replaces the page extension on the result file
	// (default ".txt").
	OutputSuffix string

	// Arguments are the caller-chosen tool parameters (may be nil).
	Arguments *model.Arguments

	// Events receives job lifecycle events (may be nil).
	Events engine.EventEmitter

	// Observe is called with every page's processor before the job
	// starts, so callers can attach per-job handlers (may be nil).
	Observe func(*engine.Processor)
}

// Submit implements Submitter. It blocks until the page's job reaches a
// terminal state and reports interrupted jobs as errors.
func (r *ToolRunner) Submit(ctx context.Context, page core.Page) error {
	supplied := r.Arguments
	if supplied == nil {
		supplied = model.NewArguments()
	}

	processor := engine.NewProcessor(r.Descriptor)
	if r.Observe != nil {
		r.Observe(processor)
	}
	inv := catalog.Invocation{
		InputPath:  page.Path,
		OutputPath: r.outputPath(page),
	}

	state, err := engine.Run(ctx, processor, r.Config, r.Target, supplied, inv,
		engine.Callbacks{Events: r.Events})
	if err != nil {
		return fmt.Errorf("page %s: %w", page.ID, err)
	}
	if state == core.StateInterrupted {
		return fmt.Errorf("page %s: job %s interrupted", page.ID, processor.JobKey())
	}
	return nil
}

func (r *ToolRunner) outputPath(page core.Page) string {
	suffix := r.OutputSuffix
	if suffix == "" {
		suffix = ".txt"
	}
	base := filepath.Base(page.Path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(r.OutputFolder, base+suffix)
}
