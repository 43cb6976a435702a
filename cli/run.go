package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/folio-labs/ocrflow/catalog"
	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"
	"github.com/folio-labs/ocrflow/model"
)

// NewRunCmd creates the `run` command executing one tool invocation
// with live output streaming.
func NewRunCmd() *cobra.Command {
	var flags commonFlags
	var (
		inputPath    string
		outputPath   string
		rawArgs      []string
		timeout      time.Duration
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Run one OCR tool invocation",
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

			if inputPath != "" {
				if _, err := os.Stat(inputPath); err != nil {
					return exitError(exitFileNotFound, "input file: %v", err)
				}
			}

			m := descriptor.Model(cfg, target)
			supplied, err := parseArguments(m, rawArgs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			cb := engine.Callbacks{
				Stdout: func(text string) { fmt.Fprintln(out, text) },
				Stderr: func(text string) { fmt.Fprintln(errOut, text) },
			}
			if showProgress {
				cb.Progress = func(value float64) {
					fmt.Fprintf(errOut, "progress: %3.0f%%\n", value*100)
				}
			}

			processor := engine.NewProcessor(descriptor)
			inv := catalog.Invocation{InputPath: inputPath, OutputPath: outputPath}
			state, err := engine.Run(ctx, processor, cfg, target, supplied, inv, cb)
			return runOutcome(state, err, ctx.Err())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input page image")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	cmd.Flags().StringArrayVarP(&rawArgs, "arg", "a", nil, "Tool argument as NAME=VALUE (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the job after this duration")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Report progress on standard error")
	return cmd
}

// runOutcome maps the terminal state of a job to the process exit
// status.
func runOutcome(state core.ProcessState, runErr, ctxErr error) error {
	diag, hasDiag := diagnosticFrom(runErr)
	if hasDiag {
		switch diag.Code {
		case core.CodeTypeMismatch, core.CodeDomainRule, core.CodeUnknownArg:
			return exitError(exitValidation, "%s", diag.Error())
		case core.CodeToolMissing:
			return exitError(exitFileNotFound, "%s", diag.Error())
		default:
			return exitError(exitRuntime, "%s", diag.Error())
		}
	}
	if runErr != nil {
		return exitError(exitRuntime, "run: %v", runErr)
	}

	switch state {
	case core.StateCompleted:
		return nil
	case core.StateCanceled:
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return exitError(exitCanceled, "job timed out")
		}
		return exitError(exitCanceled, "job canceled")
	default:
		return exitError(exitRuntime, "job ended in state %s", state)
	}
}

// diagnosticFrom extracts a structured diagnostic from an error chain.
// Diagnostics travel both by value and by pointer.
func diagnosticFrom(err error) (core.Diagnostic, bool) {
	var diag core.Diagnostic
	if errors.As(err, &diag) {
		return diag, true
	}
	var diagPtr *core.Diagnostic
	if errors.As(err, &diagPtr) {
		return *diagPtr, true
	}
	return core.Diagnostic{}, false
}

// parseArguments converts NAME=VALUE pairs into typed arguments, using
// the model to pick the value type. Names the model does not declare
// stay strings; the binder decides whether they pass through.
func parseArguments(m *model.Model, pairs []string) (*model.Arguments, error) {
	supplied := model.NewArguments()
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, exitError(exitInputParse, "invalid argument %q, expected NAME=VALUE", pair)
		}
		arg, err := typedArgument(m, name, value)
		if err != nil {
			return nil, err
		}
		supplied.Add(arg)
	}
	return supplied, nil
}

func typedArgument(m *model.Model, name, value string) (model.Argument, error) {
	field, ok := m.FieldByName(name)
	if !ok {
		return model.StringArgument{Name: name, Value: value}, nil
	}
	switch field.(type) {
	case model.BooleanField:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, exitError(exitInputParse, "argument %s: %q is not a boolean", name, value)
		}
		return model.BooleanArgument{Name: name, Value: parsed}, nil
	case model.IntegerField:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, exitError(exitInputParse, "argument %s: %q is not an integer", name, value)
		}
		return model.IntegerArgument{Name: name, Value: parsed}, nil
	case model.SelectField:
		var values []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		return model.SelectArgument{Name: name, Values: values}, nil
	default:
		return model.StringArgument{Name: name, Value: value}, nil
	}
}
