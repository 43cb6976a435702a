// Package cli implements the ocrflow command-line interface.
package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/folio-labs/ocrflow/catalog"
	"github.com/folio-labs/ocrflow/config"
)

// commonFlags are the catalog and configuration selectors shared by
// every command that resolves tools.
type commonFlags struct {
	catalogPath string
	configPath  string
	target      string
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.catalogPath, "catalog", "", "Path to a tool catalog YAML file (builtins are merged in)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to the configuration file")
	cmd.Flags().StringVar(&f.target, "target", "", "Target name overriding the configured one")
}

// loadCatalog returns the builtin catalog, or the given catalog file
// with builtins merged underneath it. A file descriptor with the same
// ID as a builtin replaces the builtin.
func (f *commonFlags) loadCatalog() (*catalog.Catalog, error) {
	if f.catalogPath == "" {
		return catalog.Builtins(), nil
	}
	cat, err := catalog.Load(f.catalogPath)
	if err != nil {
		return nil, exitError(exitInputParse, "load catalog: %v", err)
	}
	for _, d := range catalog.Builtins().List() {
		if _, err := cat.Get(d.ID); err == nil {
			continue
		}
		if err := cat.Register(d); err != nil {
			return nil, exitError(exitInputParse, "merge builtin %s: %v", d.ID, err)
		}
	}
	return cat, nil
}

// loadConfig discovers and loads the configuration file. A missing file
// is not an error unless the path was given explicitly; the zero
// configuration resolves every key to its default.
func (f *commonFlags) loadConfig() (*config.Configuration, config.Target, error) {
	path, found, err := config.DiscoverPath(f.configPath)
	if err != nil {
		return nil, config.Target{}, exitError(exitRuntime, "discover configuration: %v", err)
	}

	cfg := config.New(nil)
	target := config.Target{Name: "default"}
	if found {
		file, loaded, err := config.Load(path)
		if err != nil {
			return nil, config.Target{}, exitError(exitInputParse, "load configuration %s: %v", path, err)
		}
		cfg = loaded
		if strings.TrimSpace(file.Target.Name) != "" {
			target = file.Target
		} else {
			target.OptRoot = file.Target.OptRoot
		}
	} else if f.configPath != "" {
		return nil, config.Target{}, exitError(exitFileNotFound, "configuration file not found: %s", f.configPath)
	}

	if f.target != "" {
		target.Name = f.target
	}
	return cfg, target, nil
}

// resolveTool looks up one descriptor by ID.
func (f *commonFlags) resolveTool(id string) (*catalog.Descriptor, error) {
	cat, err := f.loadCatalog()
	if err != nil {
		return nil, err
	}
	descriptor, err := cat.Get(id)
	if err != nil {
		return nil, exitError(exitValidation, "unknown tool: %s", id)
	}
	return descriptor, nil
}
