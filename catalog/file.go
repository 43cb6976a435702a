package catalog

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/folio-labs/ocrflow/model"
)

// catalogFile is the on-disk shape of a declarative tool table.
type catalogFile struct {
	Tools map[string]toolDeclaration `yaml:"tools"`
}

// toolDeclaration mirrors Descriptor with yaml-friendly field specs.
type toolDeclaration struct {
	Description     string        `yaml:"description,omitempty"`
	Category        Category      `yaml:"category,omitempty"`
	Program         string        `yaml:"program"`
	Args            []string      `yaml:"args,omitempty"`
	Weight          float64       `yaml:"weight,omitempty"`
	GracePeriodMS   int           `yaml:"grace_period_ms,omitempty"`
	StrictArguments bool          `yaml:"strict_arguments,omitempty"`
	ExitPolicy      ExitPolicy    `yaml:"exit_policy,omitempty"`
	Capabilities    Capabilities  `yaml:"capabilities,omitempty"`
	Fields          []fieldSpec   `yaml:"fields,omitempty"`
}

// fieldSpec is the yaml shape of one declared field; Type selects the
// model.Field variant.
type fieldSpec struct {
	Type        string         `yaml:"type"`
	Argument    string         `yaml:"argument"`
	Label       string         `yaml:"label"`
	Description string         `yaml:"description,omitempty"`
	Provider    string         `yaml:"provider,omitempty"`
	Default     *yaml.Node     `yaml:"default,omitempty"`
	Placeholder string         `yaml:"placeholder,omitempty"`
	Minimum     *int           `yaml:"minimum,omitempty"`
	Maximum     *int           `yaml:"maximum,omitempty"`
	Step        *int           `yaml:"step,omitempty"`
	Unit        string         `yaml:"unit,omitempty"`
	MultiSelect bool           `yaml:"multi_select,omitempty"`
	Options     []model.Option `yaml:"options,omitempty"`
}

// Load reads a declarative tool table from a yaml file. The table is
// meant to be loaded once at startup.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied configuration.
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw yaml.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	catalog, err := New()
	if err != nil {
		return nil, err
	}
	for id, decl := range file.Tools {
		descriptor, err := decl.toDescriptor(id)
		if err != nil {
			return nil, fmt.Errorf("catalog: tool %q: %w", id, err)
		}
		if err := catalog.Register(descriptor); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func (d toolDeclaration) toDescriptor(id string) (*Descriptor, error) {
	fields := make([]model.Field, 0, len(d.Fields))
	for _, spec := range d.Fields {
		field, err := spec.toField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return &Descriptor{
		ID:              id,
		Description:     d.Description,
		Category:        d.Category,
		Program:         d.Program,
		Args:            d.Args,
		Weight:          d.Weight,
		GracePeriod:     time.Duration(d.GracePeriodMS) * time.Millisecond,
		StrictArguments: d.StrictArguments,
		ExitPolicy:      d.ExitPolicy,
		Capabilities:    d.Capabilities,
		Fields:          fields,
	}, nil
}

func (s fieldSpec) toField() (model.Field, error) {
	meta := model.FieldMeta{
		Argument:    s.Argument,
		Label:       s.Label,
		Description: s.Description,
		Provider:    s.Provider,
	}

	switch s.Type {
	case "string":
		field := model.StringField{FieldMeta: meta, Placeholder: s.Placeholder}
		if s.Default != nil {
			if err := s.Default.Decode(&field.Default); err != nil {
				return nil, fmt.Errorf("field %q: string default: %w", s.Argument, err)
			}
		}
		return field, nil
	case "boolean":
		field := model.BooleanField{FieldMeta: meta}
		if s.Default != nil {
			if err := s.Default.Decode(&field.Default); err != nil {
				return nil, fmt.Errorf("field %q: boolean default: %w", s.Argument, err)
			}
		}
		return field, nil
	case "integer":
		field := model.IntegerField{
			FieldMeta: meta,
			Minimum:   s.Minimum,
			Maximum:   s.Maximum,
			Step:      s.Step,
			Unit:      s.Unit,
		}
		if s.Default != nil {
			var v int
			if err := s.Default.Decode(&v); err != nil {
				return nil, fmt.Errorf("field %q: integer default: %w", s.Argument, err)
			}
			field.Default = &v
		}
		return field, nil
	case "select":
		return model.SelectField{
			FieldMeta:   meta,
			MultiSelect: s.MultiSelect,
			Options:     s.Options,
		}, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported type %q", s.Argument, s.Type)
	}
}
