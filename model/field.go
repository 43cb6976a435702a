// Package model defines the declarative parameter model for ocrflow
// tools: the Field variants a tool exposes to its host, the ordered
// Model built per invocation context, and the loosely-typed Arguments
// bag a caller supplies when invoking a tool.
//
// A Model is part UI contract, part validation schema: the host renders
// its fields to collect arguments, and the engine's binder validates the
// supplied arguments against the same fields.
package model

// Field is the common surface of all declarative parameter fields.
type Field interface {
	// ArgumentName is the wire name the caller supplies a value under.
	ArgumentName() string
	// FieldLabel is the localized display label.
	FieldLabel() string
	// FieldDescription is the localized help text (may be empty).
	FieldDescription() string
	// ProviderKey names the registered field provider that finalizes
	// this field at model build time, or "" for a static field.
	ProviderKey() string
}

// FieldMeta carries the metadata shared by every field variant and is
// embedded in each of them.
type FieldMeta struct {
	Argument    string `yaml:"argument" json:"argument"`
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Provider marks this field as a placeholder completed at build time.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
}

// ArgumentName implements Field.
func (m FieldMeta) ArgumentName() string { return m.Argument }

// FieldLabel implements Field.
func (m FieldMeta) FieldLabel() string { return m.Label }

// FieldDescription implements Field.
func (m FieldMeta) FieldDescription() string { return m.Description }

// ProviderKey implements Field.
func (m FieldMeta) ProviderKey() string { return m.Provider }

// StringField is a free-text parameter.
type StringField struct {
	FieldMeta   `yaml:",inline"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// BooleanField is an on/off parameter.
type BooleanField struct {
	FieldMeta `yaml:",inline"`
	Default   bool `yaml:"default,omitempty" json:"default,omitempty"`
}

// IntegerField is a whole-number parameter with optional range
// constraints. Minimum doubles as the domain rule applied at binding
// time: a supplied value below it is rejected.
type IntegerField struct {
	FieldMeta `yaml:",inline"`
	Default   *int   `yaml:"default,omitempty" json:"default,omitempty"`
	Minimum   *int   `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum   *int   `yaml:"maximum,omitempty" json:"maximum,omitempty"`
	Step      *int   `yaml:"step,omitempty" json:"step,omitempty"`
	Unit      string `yaml:"unit,omitempty" json:"unit,omitempty"`
}

// SelectField is a parameter choosing one or more options from a list.
// Placeholder select fields carry a Provider key and have their Options
// populated at build time from a resource directory scan.
type SelectField struct {
	FieldMeta   `yaml:",inline"`
	MultiSelect bool     `yaml:"multi_select,omitempty" json:"multi_select,omitempty"`
	Options     []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// SelectedValues returns the values of the currently selected options.
func (f SelectField) SelectedValues() []string {
	var values []string
	for _, opt := range f.Options {
		if opt.Selected {
			values = append(values, opt.Value)
		}
	}
	return values
}

// Option is one selectable entry of a SelectField.
type Option struct {
	Value    string `yaml:"value" json:"value"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
	Selected bool   `yaml:"selected,omitempty" json:"selected,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Model is the ordered field sequence exposed to the host for one
// invocation context. It is rebuilt on every request and never cached,
// because provider-backed fields depend on live directory scans.
type Model struct {
	fields []Field
}

// NewModel creates a model from fields, preserving order.
func NewModel(fields ...Field) *Model {
	return &Model{fields: fields}
}

// Fields returns the declared fields in declaration order.
func (m *Model) Fields() []Field {
	return m.fields
}

// FieldByName returns the field declared under the given argument name.
func (m *Model) FieldByName(name string) (Field, bool) {
	for _, f := range m.fields {
		if f.ArgumentName() == name {
			return f, true
		}
	}
	return nil, false
}

// Ensure interface compliance at compile time.
var (
	_ Field = StringField{}
	_ Field = BooleanField{}
	_ Field = IntegerField{}
	_ Field = SelectField{}
)
