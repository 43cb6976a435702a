package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/folio-labs/ocrflow/catalog"
	"github.com/folio-labs/ocrflow/config"
	"github.com/folio-labs/ocrflow/model"
)

// NewToolsCmd creates the `tools` command listing the available tool
// descriptors together with their pre-flight status.
func NewToolsCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available OCR tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := flags.loadCatalog()
			if err != nil {
				return err
			}
			cfg, target, err := flags.loadConfig()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tPROGRAM\tSTATUS")
			for _, d := range cat.List() {
				premise := d.Premise(cfg, target)
				status := string(premise.Severity)
				if premise.Message != "" {
					status = fmt.Sprintf("%s (%s)", status, premise.Message)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Category, d.Program, status)
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	return cmd
}

// NewDescribeCmd creates the `describe` command printing one tool's
// descriptor and its built parameter model.
func NewDescribeCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "describe <tool>",
		Short: "Show a tool's descriptor and parameter model",
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tool: %s\n", descriptor.ID)
			if descriptor.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", descriptor.Description)
			}
			fmt.Fprintf(out, "Category: %s\n", descriptor.Category)
			fmt.Fprintf(out, "Program: %s\n", descriptor.Program)
			if descriptor.StrictArguments {
				fmt.Fprintln(out, "Arguments: strict")
			}
			if descriptor.ExitPolicy != "" {
				fmt.Fprintf(out, "Exit policy: %s\n", descriptor.ExitPolicy)
			}
			premise := descriptor.Premise(cfg, target)
			fmt.Fprintf(out, "Status: %s", premise.Severity)
			if premise.Message != "" {
				fmt.Fprintf(out, " (%s)", premise.Message)
			}
			fmt.Fprintln(out)

			m := descriptor.Model(cfg, target)
			if len(m.Fields()) == 0 {
				return nil
			}

			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ARGUMENT\tTYPE\tDEFAULT\tDETAILS")
			for _, field := range m.Fields() {
				name, kind, fallback, details := describeField(field)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, kind, fallback, details)
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	return cmd
}

// describeField flattens one model field into table cells.
func describeField(field model.Field) (name, kind, fallback, details string) {
	name = field.ArgumentName()
	switch f := field.(type) {
	case model.StringField:
		kind = "string"
		fallback = f.Default
	case model.BooleanField:
		kind = "boolean"
		fallback = fmt.Sprintf("%t", f.Default)
	case model.IntegerField:
		kind = "integer"
		if f.Default != nil {
			fallback = fmt.Sprintf("%d", *f.Default)
		}
		var bounds []string
		if f.Minimum != nil {
			bounds = append(bounds, fmt.Sprintf("min %d", *f.Minimum))
		}
		if f.Maximum != nil {
			bounds = append(bounds, fmt.Sprintf("max %d", *f.Maximum))
		}
		details = strings.Join(bounds, ", ")
	case model.SelectField:
		kind = "select"
		if f.MultiSelect {
			kind = "multi-select"
		}
		fallback = strings.Join(f.SelectedValues(), ",")
		values := make([]string, 0, len(f.Options))
		for _, opt := range f.Options {
			if opt.Disabled {
				continue
			}
			values = append(values, opt.Value)
		}
		details = strings.Join(values, ", ")
	default:
		kind = "unknown"
	}
	return name, kind, fallback, details
}

// NewModelsCmd creates the `models` command listing the recognition
// models installed for each tool that uses them.
func NewModelsCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "models [tool]",
		Short: "List installed recognition models per tool",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := flags.loadCatalog()
			if err != nil {
				return err
			}
			cfg, target, err := flags.loadConfig()
			if err != nil {
				return err
			}

			descriptors := cat.List()
			if len(args) == 1 {
				descriptor, err := flags.resolveTool(args[0])
				if err != nil {
					return err
				}
				descriptors = []*catalog.Descriptor{descriptor}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOOL\tFOLDER\tMODELS")
			for _, d := range descriptors {
				if !usesModels(d) {
					continue
				}
				folder := d.ResourceFolder(cfg, target)
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, folder, strings.Join(installedModels(d, cfg, target), ", "))
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	return cmd
}

func usesModels(d *catalog.Descriptor) bool {
	for _, field := range d.Fields {
		if field.ProviderKey() == model.ProviderModelSelect {
			return true
		}
	}
	return false
}

// installedModels returns the non-placeholder options of the built
// model-selection field.
func installedModels(d *catalog.Descriptor, cfg *config.Configuration, target config.Target) []string {
	m := d.Model(cfg, target)
	for _, field := range m.Fields() {
		sel, ok := field.(model.SelectField)
		if !ok {
			continue
		}
		var values []string
		for _, opt := range sel.Options {
			if opt.Disabled || opt.Value == "" {
				continue
			}
			values = append(values, opt.Value)
		}
		if len(values) > 0 {
			return values
		}
	}
	return nil
}
