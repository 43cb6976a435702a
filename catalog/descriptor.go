// Package catalog holds the declarative tool descriptor table for
// ocrflow. One Descriptor replaces what used to be a per-tool class
// hierarchy: it names the tool, declares its parameter fields, carries
// orthogonal capability flags, and knows how to turn bound arguments
// into an external command line.
package catalog

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/folio-labs/ocrflow/config"
	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/model"
	"github.com/folio-labs/ocrflow/resource"
)

// Category groups tools by processing step.
type Category string

const (
	CategorySegmentation Category = "segmentation"
	CategoryBinarization Category = "binarization"
	CategoryDeskewing    Category = "deskewing"
	CategoryRecognition  Category = "recognition"
)

// ExitPolicy controls how a non-zero exit status of the external process
// maps to a terminal state.
type ExitPolicy string

const (
	// ExitPolicyIgnore surfaces captured error text but leaves the
	// terminal state to the invocation outcome (the default).
	ExitPolicyIgnore ExitPolicy = "ignore"
	// ExitPolicyInterrupt maps any non-zero exit to an interrupted state
	// with a diagnostic carrying the exit code.
	ExitPolicyInterrupt ExitPolicy = "interrupt"
)

// Capabilities are orthogonal execution-mode flags selected by
// composition rather than descriptor subtypes.
type Capabilities struct {
	// JSON marks tools that emit structured JSON on standard output.
	JSON bool `yaml:"json,omitempty"`
	// Container marks tools launched inside a managed container image;
	// image selection and networking belong to the host collaborator.
	Container bool `yaml:"container,omitempty"`
	// Async marks tools executed through the event-registered
	// microservice variant.
	Async bool `yaml:"async,omitempty"`
}

// Invocation carries everything a command builder may consult.
type Invocation struct {
	Arguments      *core.ProcessorArguments
	ResourceFolder string
	InputPath      string
	OutputPath     string
}

// CommandBuilder computes the external program argument vector for an
// invocation. Descriptors loaded from a catalog file use the templated
// default; builtin descriptors may install their own.
type CommandBuilder func(inv Invocation) []string

// Descriptor declares one external-tool-backed processing step.
type Descriptor struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description,omitempty"`
	Category    Category `yaml:"category,omitempty"`

	// Program is the external executable; Args is its argument template.
	// Template entries of the form ${name} expand to bound argument
	// values; unresolved entries are dropped.
	Program string   `yaml:"program"`
	Args    []string `yaml:"args,omitempty"`

	// Weight is the fractional progress increment per completed unit of
	// internal work. Zero means progress jumps straight to done.
	Weight float64 `yaml:"weight,omitempty"`

	// GracePeriod bounds the stop-then-kill window once cancellation is
	// observed. Zero falls back to the engine default.
	GracePeriod time.Duration `yaml:"grace_period,omitempty"`

	// StrictArguments rejects argument names the model does not declare
	// instead of forwarding them opaquely.
	StrictArguments bool `yaml:"strict_arguments,omitempty"`

	ExitPolicy   ExitPolicy    `yaml:"exit_policy,omitempty"`
	Capabilities Capabilities  `yaml:"capabilities,omitempty"`
	Fields       []model.Field `yaml:"-"`

	// Command overrides the templated argument builder when set.
	Command CommandBuilder `yaml:"-"`
}

// DefaultModelKey is the configuration key holding the explicit default
// model selection for this tool. Its default is deliberately empty so an
// absent override falls through to the field's prior selection.
func (d *Descriptor) DefaultModelKey() config.CollectionKey {
	return config.CollectionKey{Namespace: d.ID, Key: "default-model"}
}

// ResourceKeys are the path segments appended under the opt folder to
// reach this tool's model resources.
func (d *Descriptor) ResourceKeys() []config.CollectionKey {
	return []config.CollectionKey{
		config.KeyResources,
		{Namespace: d.ID, Key: "opt-models", Default: d.ID},
	}
}

// Model builds the declarative parameter model for one invocation
// context. It is rebuilt on every call; model-selection fields re-scan
// the resource directories each time.
func (d *Descriptor) Model(cfg *config.Configuration, target config.Target) *model.Model {
	reg := model.NewRegistry()
	reg.RegisterProvider(model.ProviderModelSelect,
		model.FolderSelectProvider(d.DefaultModelKey(), d.ResourceKeys()...))
	return reg.Build(cfg, target, d.Fields)
}

// ResourceFolder resolves this tool's model resource folder.
func (d *Descriptor) ResourceFolder(cfg *config.Configuration, target config.Target) string {
	return resource.OptFolder(cfg, target, d.ResourceKeys()...)
}

// Premise runs the pre-flight checks for this tool: the external program
// must be locatable, and tools with a model-selection field should have
// at least one installed model folder. A failing premise gates whether
// the tool is offered; it is advisory, never a runtime failure.
func (d *Descriptor) Premise(cfg *config.Configuration, target config.Target) core.Premise {
	if _, err := exec.LookPath(d.Program); err != nil {
		return core.PremiseBlock("required tool " + d.Program + " is not installed")
	}
	if d.wantsModels() {
		if folders := resource.ListFolders(d.ResourceFolder(cfg, target)); len(folders) == 0 {
			return core.PremiseWarn("no models installed for " + d.ID)
		}
	}
	return core.PremiseOK()
}

func (d *Descriptor) wantsModels() bool {
	for _, field := range d.Fields {
		if field.ProviderKey() == model.ProviderModelSelect {
			return true
		}
	}
	return false
}

// BuildCommand produces the final argument vector: the descriptor's own
// builder (or the templated default), followed by the opaque
// pass-through arguments in supplied order.
func (d *Descriptor) BuildCommand(inv Invocation) (string, []string) {
	var argv []string
	if d.Command != nil {
		argv = d.Command(inv)
	} else {
		argv = expandArgs(d.Args, inv)
	}
	for _, extra := range inv.Arguments.Passthrough {
		argv = append(argv, passthroughArgs(extra)...)
	}
	return d.Program, argv
}

// expandArgs substitutes ${name} template entries with bound values.
// A template entry that references an unbound name is dropped together
// with the flag immediately preceding it, so optional parameters leave
// no dangling flags.
func expandArgs(template []string, inv Invocation) []string {
	argv := make([]string, 0, len(template))
	// Only a literal template entry counts as a droppable flag; an
	// expanded value that merely starts with "-" (a negative number,
	// say) must survive an unresolved ref after it.
	lastIsLiteralFlag := false
	for _, entry := range template {
		name, isRef := templateRef(entry)
		if !isRef {
			argv = append(argv, entry)
			lastIsLiteralFlag = strings.HasPrefix(entry, "-")
			continue
		}
		values, ok := lookupValues(name, inv)
		if !ok {
			if lastIsLiteralFlag {
				argv = argv[:len(argv)-1]
				lastIsLiteralFlag = false
			}
			continue
		}
		argv = append(argv, values...)
		lastIsLiteralFlag = false
	}
	return argv
}

func templateRef(entry string) (string, bool) {
	if strings.HasPrefix(entry, "${") && strings.HasSuffix(entry, "}") {
		return entry[2 : len(entry)-1], true
	}
	return "", false
}

func lookupValues(name string, inv Invocation) ([]string, bool) {
	switch name {
	case "input":
		return []string{inv.InputPath}, inv.InputPath != ""
	case "output":
		return []string{inv.OutputPath}, inv.OutputPath != ""
	case "resources":
		return []string{inv.ResourceFolder}, inv.ResourceFolder != ""
	}

	args := inv.Arguments
	if v, ok := args.Strings[name]; ok {
		return []string{v}, v != ""
	}
	if v, ok := args.Integers[name]; ok {
		return []string{strconv.Itoa(v)}, true
	}
	if v, ok := args.Booleans[name]; ok {
		// Boolean refs expand to nothing; the preceding flag stays only
		// when the value is true.
		if v {
			return []string{}, true
		}
		return nil, false
	}
	if v, ok := args.Selections[name]; ok && len(v) > 0 {
		return []string{strings.Join(v, "+")}, true
	}
	return nil, false
}

// passthroughArgs renders one opaque pass-through argument as
// conventional long-option tokens.
func passthroughArgs(arg core.PassthroughArgument) []string {
	flag := "--" + arg.Name
	switch v := arg.Value.(type) {
	case nil:
		return []string{flag}
	case bool:
		if v {
			return []string{flag}
		}
		return nil
	case string:
		return []string{flag, v}
	case int:
		return []string{flag, strconv.Itoa(v)}
	case []string:
		out := []string{flag}
		return append(out, v...)
	default:
		return []string{flag, strings.TrimSpace(fmt.Sprint(v))}
	}
}
