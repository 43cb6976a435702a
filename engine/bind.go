package engine

import (
	"fmt"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/model"
)

// Bind validates a supplied argument bag against the declared model and
// produces the typed processor arguments for one invocation.
//
// Fields are processed in model order. A field whose argument name is
// absent keeps its declared default. A type mismatch or domain-rule
// violation aborts binding immediately with a diagnostic naming the
// field; the caller reports the job interrupted. Names the model never
// claimed are not rejected: unless strict, they become opaque
// pass-through parameters forwarded unchanged to the tool invocation.
func Bind(m *model.Model, supplied *model.Arguments, strict bool) (*core.ProcessorArguments, *core.Diagnostic) {
	bound := core.NewProcessorArguments()

	available := make(map[string]bool, supplied.Len())
	for _, name := range supplied.Names() {
		available[name] = true
	}

	for _, field := range m.Fields() {
		name := field.ArgumentName()
		applyDefault(bound, field)

		if !available[name] {
			continue
		}
		delete(available, name)

		arg, _ := supplied.Get(name)
		if diag := bindField(bound, field, arg); diag != nil {
			return nil, diag
		}
	}

	// Leftover names in supplied order.
	for _, name := range supplied.Names() {
		if !available[name] {
			continue
		}
		if strict {
			return nil, &core.Diagnostic{
				Field:    name,
				Code:     core.CodeUnknownArg,
				Severity: core.SeverityError,
				Message:  fmt.Sprintf("argument %q is not declared by this tool", name),
			}
		}
		arg, _ := supplied.Get(name)
		bound.Passthrough = append(bound.Passthrough, core.PassthroughArgument{
			Name:  name,
			Value: arg.Raw(),
		})
	}

	return bound, nil
}

func applyDefault(bound *core.ProcessorArguments, field model.Field) {
	switch f := field.(type) {
	case model.StringField:
		if f.Default != "" {
			bound.Strings[f.Argument] = f.Default
		}
	case model.BooleanField:
		if f.Default {
			bound.Booleans[f.Argument] = true
		}
	case model.IntegerField:
		if f.Default != nil {
			bound.Integers[f.Argument] = *f.Default
		}
	case model.SelectField:
		if selected := f.SelectedValues(); len(selected) > 0 {
			bound.Selections[f.Argument] = selected
		}
	}
}

func bindField(bound *core.ProcessorArguments, field model.Field, arg model.Argument) *core.Diagnostic {
	name := field.ArgumentName()

	switch f := field.(type) {
	case model.StringField:
		v, ok := arg.(model.StringArgument)
		if !ok {
			return typeMismatch(name, "string", arg)
		}
		bound.Strings[name] = v.Value

	case model.BooleanField:
		v, ok := arg.(model.BooleanArgument)
		if !ok {
			return typeMismatch(name, "boolean", arg)
		}
		bound.Booleans[name] = v.Value

	case model.IntegerField:
		v, ok := arg.(model.IntegerArgument)
		if !ok {
			return typeMismatch(name, "integer", arg)
		}
		if diag := checkIntegerRange(f, v.Value); diag != nil {
			return diag
		}
		bound.Integers[name] = v.Value

	case model.SelectField:
		v, ok := arg.(model.SelectArgument)
		if !ok {
			return typeMismatch(name, "select", arg)
		}
		if diag := checkSelection(f, v.Values); diag != nil {
			return diag
		}
		bound.Selections[name] = v.Values

	default:
		return typeMismatch(name, "supported", arg)
	}
	return nil
}

func typeMismatch(name, expected string, arg model.Argument) *core.Diagnostic {
	return &core.Diagnostic{
		Field:    name,
		Code:     core.CodeTypeMismatch,
		Severity: core.SeverityError,
		Message:  fmt.Sprintf("argument %q expects a value of type %s, got %s", name, expected, argTypeName(arg)),
	}
}

func argTypeName(arg model.Argument) string {
	switch arg.(type) {
	case model.StringArgument:
		return "string"
	case model.BooleanArgument:
		return "boolean"
	case model.IntegerArgument:
		return "integer"
	case model.SelectArgument:
		return "select"
	default:
		return fmt.Sprintf("%T", arg)
	}
}

func checkIntegerRange(field model.IntegerField, value int) *core.Diagnostic {
	name := field.Argument
	if field.Minimum != nil && value < *field.Minimum {
		return &core.Diagnostic{
			Field:    name,
			Code:     core.CodeDomainRule,
			Severity: core.SeverityError,
			Message:  fmt.Sprintf("value %d of argument %q is below the minimum %d", value, name, *field.Minimum),
		}
	}
	if field.Maximum != nil && value > *field.Maximum {
		return &core.Diagnostic{
			Field:    name,
			Code:     core.CodeDomainRule,
			Severity: core.SeverityError,
			Message:  fmt.Sprintf("value %d of argument %q is above the maximum %d", value, name, *field.Maximum),
		}
	}
	return nil
}

func checkSelection(field model.SelectField, values []string) *core.Diagnostic {
	name := field.Argument
	if !field.MultiSelect && len(values) > 1 {
		return &core.Diagnostic{
			Field:    name,
			Code:     core.CodeDomainRule,
			Severity: core.SeverityError,
			Message:  fmt.Sprintf("argument %q allows a single selection, got %d values", name, len(values)),
		}
	}

	allowed := make(map[string]bool, len(field.Options))
	for _, opt := range field.Options {
		if !opt.Disabled {
			allowed[opt.Value] = true
		}
	}
	for _, value := range values {
		if !allowed[value] {
			return &core.Diagnostic{
				Field:    name,
				Code:     core.CodeDomainRule,
				Severity: core.SeverityError,
				Message:  fmt.Sprintf("%q is not an available option of argument %q", value, name),
			}
		}
	}
	return nil
}
