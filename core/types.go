// Package core provides the foundational types shared across the ocrflow
// processing framework.
//
// This package contains:
//   - ProcessState: the job lifecycle state machine vocabulary
//   - Diagnostic and Severity: structured validation results
//   - Premise: pre-flight check results gating tool availability
//   - ProcessorArguments: the typed output of argument binding
package core

import (
	"fmt"
	"time"
)

// ProcessState identifies the lifecycle state of a processing job.
// StateRunning is the only non-terminal state; the three terminal states
// are reachable only from it.
type ProcessState string

const (
	StateCreated     ProcessState = "created"
	StateRunning     ProcessState = "running"
	StateCompleted   ProcessState = "completed"
	StateCanceled    ProcessState = "canceled"
	StateInterrupted ProcessState = "interrupted"
)

// String returns the string representation of the ProcessState.
func (s ProcessState) String() string {
	return string(s)
}

// Terminal reports whether the state ends a job's lifecycle.
func (s ProcessState) Terminal() bool {
	switch s {
	case StateCompleted, StateCanceled, StateInterrupted:
		return true
	default:
		return false
	}
}

// Severity grades diagnostics and premises.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a structured validation result. Binding and catalog
// validation produce diagnostics instead of throwing errors across the
// execution boundary.
type Diagnostic struct {
	Field    string   `json:"field,omitempty"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Error implements the error interface so a hard diagnostic can flow
// through error returns without losing structure.
func (d Diagnostic) Error() string {
	if d.Field == "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s: field %q: %s", d.Code, d.Field, d.Message)
}

// Diagnostic codes produced by the framework.
const (
	CodeTypeMismatch   = "TYPE_MISMATCH"
	CodeDomainRule     = "DOMAIN_RULE"
	CodeUnknownArg     = "UNKNOWN_ARGUMENT"
	CodeExitStatus     = "EXIT_STATUS"
	CodeToolMissing    = "TOOL_MISSING"
	CodeNoResources    = "NO_RESOURCES"
	CodeAlreadyStarted = "ALREADY_STARTED"
)

// Premise is the result of a pre-flight check for a tool. A blocking
// premise keeps the tool from being offered or run; it is advisory and
// never a runtime failure by itself.
type Premise struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message,omitempty"`
}

// Blocks reports whether the premise prevents the tool from running.
func (p Premise) Blocks() bool {
	return p.Severity == SeverityError
}

// PremiseOK is the all-clear premise.
func PremiseOK() Premise {
	return Premise{Severity: SeverityOK}
}

// PremiseWarn flags a degraded but runnable tool.
func PremiseWarn(message string) Premise {
	return Premise{Severity: SeverityWarning, Message: message}
}

// PremiseBlock prevents the tool from being offered or run.
func PremiseBlock(message string) Premise {
	return Premise{Severity: SeverityError, Message: message}
}

// ProcessorArguments is the typed, validated parameter set produced by
// argument binding. It is created fresh per invocation, mutated only
// during binding, and treated as immutable during execution.
type ProcessorArguments struct {
	Strings    map[string]string
	Booleans   map[string]bool
	Integers   map[string]int
	Selections map[string][]string

	// Passthrough holds argument names the declared model did not claim,
	// in the order they were supplied. They are forwarded unchanged to
	// the external tool invocation.
	Passthrough []PassthroughArgument
}

// PassthroughArgument is an undeclared argument forwarded opaquely.
type PassthroughArgument struct {
	Name  string
	Value any
}

// NewProcessorArguments returns an empty argument set with all maps
// allocated.
func NewProcessorArguments() *ProcessorArguments {
	return &ProcessorArguments{
		Strings:    make(map[string]string),
		Booleans:   make(map[string]bool),
		Integers:   make(map[string]int),
		Selections: make(map[string][]string),
	}
}

// String returns the bound string value for name, or fallback when the
// binder never saw it.
func (a *ProcessorArguments) String(name, fallback string) string {
	if v, ok := a.Strings[name]; ok {
		return v
	}
	return fallback
}

// Boolean returns the bound boolean value for name, or fallback.
func (a *ProcessorArguments) Boolean(name string, fallback bool) bool {
	if v, ok := a.Booleans[name]; ok {
		return v
	}
	return fallback
}

// Integer returns the bound integer value for name, or fallback.
func (a *ProcessorArguments) Integer(name string, fallback int) int {
	if v, ok := a.Integers[name]; ok {
		return v
	}
	return fallback
}

// Selection returns the bound selection for name, or nil.
func (a *ProcessorArguments) Selection(name string) []string {
	return a.Selections[name]
}

// Page identifies one unit of work submitted to a processing job,
// typically a single page image discovered in an input folder.
type Page struct {
	ID       string    // stable within a run
	Path     string    // absolute path to the page image
	Modified time.Time // source file modification time
}
