package engine

import (
	"context"
	"errors"

	"github.com/folio-labs/ocrflow/catalog"
	"github.com/folio-labs/ocrflow/config"
	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/model"
)

// Run drives one full invocation of a tool: it builds the model for the
// invocation context, binds the supplied arguments, and executes the
// external process on the given processor. The returned state is
// terminal; completion bookkeeping has run on every path.
//
// A binding failure interrupts the job before any process is
// constructed. An initialize failure on an already-canceled job reports
// canceled without launching anything.
func Run(
	ctx context.Context,
	p *Processor,
	cfg *config.Configuration,
	target config.Target,
	supplied *model.Arguments,
	inv catalog.Invocation,
	cb Callbacks,
) (core.ProcessState, error) {
	descriptor := p.Descriptor()

	if err := p.Initialize(cb); err != nil {
		if errors.Is(err, ErrCanceledBeforeStart) {
			return core.StateCanceled, nil
		}
		return p.State(), err
	}

	m := descriptor.Model(cfg, target)
	bound, diag := Bind(m, supplied, descriptor.StrictArguments)
	if diag != nil {
		return p.Interrupt(*diag), diag
	}

	inv.Arguments = bound
	if inv.ResourceFolder == "" {
		inv.ResourceFolder = descriptor.ResourceFolder(cfg, target)
	}
	return p.Execute(ctx, inv)
}
