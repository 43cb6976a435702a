package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/daemon"
	"github.com/folio-labs/ocrflow/engine"
	flowotel "github.com/folio-labs/ocrflow/otel"
)

// NewWatchCmd creates the `watch` command running the hotfolder daemon:
// a cron-scheduled folder scan that submits each new page image to one
// tool.
func NewWatchCmd() *cobra.Command {
	var flags commonFlags
	var (
		folder       string
		outputFolder string
		extension    string
		cronExpr     string
		scanDepth    int
		rawArgs      []string
		eventsDB     string
		otlpEndpoint string
		otlpInsecure bool
	)

	cmd := &cobra.Command{
		Use:   "watch <tool>",
		Short: "Watch a hotfolder and run a tool on every new page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptor, err := flags.resolveTool(args[0])
			if err != nil {
				return err
			}
			cfg, target, err := flags.loadConfig()
			if err != nil {
				return err
			}

			premise := descriptor.Premise(cfg, target)
			if premise.Blocks() {
				return exitError(exitValidation, "tool %s is not runnable: %s", descriptor.ID, premise.Message)
			}
			if _, err := os.Stat(folder); err != nil {
				return exitError(exitFileNotFound, "hotfolder: %v", err)
			}
			if err := os.MkdirAll(outputFolder, 0o750); err != nil {
				return exitError(exitRuntime, "output folder: %v", err)
			}

			m := descriptor.Model(cfg, target)
			supplied, err := parseArguments(m, rawArgs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			shutdownTracing, err := flowotel.SetupTracing(ctx, flowotel.ProviderConfig{
				Endpoint: otlpEndpoint,
				Insecure: otlpInsecure,
			})
			if err != nil {
				return exitError(exitRuntime, "tracing setup: %v", err)
			}

			tracing := flowotel.NewTracingHandler(otelapi.Tracer("ocrflow"))
			metrics, err := flowotel.NewMetricsHandler(otelapi.Meter("ocrflow"))
			if err != nil {
				return exitError(exitRuntime, "metrics setup: %v", err)
			}
			pipeline, err := newEventPipeline(eventsDB)
			if err != nil {
				return exitError(exitRuntime, "event pipeline: %v", err)
			}
			emit := flowotel.EnrichEmitter(func(e engine.Event) {
				metrics.Handle(e)
				pipeline.dispatch(e)
				if e.Kind == engine.EventJobFinished && e.State == core.StateInterrupted {
					logger.Warn("job interrupted", "job", e.JobKey, "tool", e.Tool, "message", e.Message)
				}
			}, tracing)

			runner := &daemon.ToolRunner{
				Descriptor:   descriptor,
				Config:       cfg,
				Target:       target,
				OutputFolder: outputFolder,
				Arguments:    supplied,
				Observe:      pipeline.observe,
				Events: func(e engine.Event) {
					tracing.Handle(e)
					emit(e)
				},
			}

			hf, err := daemon.NewHotfolder(daemon.HotfolderConfig{
				Folder:    folder,
				Extension: extension,
				ScanDepth: scanDepth,
				Cron:      cronExpr,
				Submitter: runner,
				Logger:    logger,
			})
			if err != nil {
				return exitError(exitValidation, "hotfolder: %v", err)
			}
			if err := hf.Start(); err != nil {
				return exitError(exitRuntime, "start hotfolder: %v", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s with %s (next activation %s)\n",
				folder, descriptor.ID, hf.NextActivation().Format(time.RFC3339))

			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := hf.Stop(stopCtx); err != nil {
				logger.Error("hotfolder stop", "error", err)
			}
			if err := pipeline.close(stopCtx); err != nil {
				logger.Error("event pipeline close", "error", err)
			}
			if err := shutdownTracing(stopCtx); err != nil {
				logger.Error("tracing shutdown", "error", err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&folder, "folder", "", "Hotfolder to watch for page images")
	cmd.Flags().StringVar(&outputFolder, "output", "", "Folder receiving one result file per page")
	cmd.Flags().StringVar(&extension, "extension", "", "Only submit files with this extension (e.g. .png)")
	cmd.Flags().StringVar(&cronExpr, "cron", "* * * * *", "Five-field UTC cron schedule for scans")
	cmd.Flags().IntVar(&scanDepth, "depth", 1, "How many folder levels below the hotfolder to scan")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil, "Tool argument as NAME=VALUE (repeatable)")
	cmd.Flags().StringVar(&eventsDB, "events-db", "", "SQLite file persisting job events for replay (default in-memory)")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP HTTP endpoint for trace export")
	cmd.Flags().BoolVar(&otlpInsecure, "otlp-insecure", false, "Use plain HTTP for the OTLP endpoint")
	_ = cmd.MarkFlagRequired("folder")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
