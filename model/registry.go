package model

import (
	"github.com/folio-labs/ocrflow/config"
	"github.com/folio-labs/ocrflow/resource"
)

// FieldProvider finalizes a placeholder field at model build time. It
// returns the replacement fields and true, or (nil, false) to leave the
// field unchanged. Providers run on every build and must tolerate
// repeated and concurrent calls.
type FieldProvider func(cfg *config.Configuration, target config.Target, field Field) ([]Field, bool)

// Registry builds Models per (configuration, target) pair. Placeholder
// fields are handed to the provider registered under their provider key;
// unknown keys leave the field as declared.
type Registry struct {
	providers map[string]FieldProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]FieldProvider)}
}

// RegisterProvider registers a provider under key, replacing any
// previous registration.
func (r *Registry) RegisterProvider(key string, provider FieldProvider) {
	r.providers[key] = provider
}

// Build assembles a Model from the declared fields. The model is built
// fresh on every call; provider-backed fields re-scan their resources
// each time.
func (r *Registry) Build(cfg *config.Configuration, target config.Target, declared []Field) *Model {
	fields := make([]Field, 0, len(declared))
	for _, field := range declared {
		key := field.ProviderKey()
		if key == "" {
			fields = append(fields, field)
			continue
		}
		provider, ok := r.providers[key]
		if !ok {
			fields = append(fields, field)
			continue
		}
		replacement, changed := provider(cfg, target, field)
		if !changed {
			fields = append(fields, field)
			continue
		}
		fields = append(fields, replacement...)
	}
	return NewModel(fields...)
}

// ProviderModelSelect is the provider key tool definitions use for
// "which recognition model" select fields.
const ProviderModelSelect = "model-select"

// NoModelsOptionLabel is the label of the disabled placeholder option
// synthesized when no model folders are installed.
const NoModelsOptionLabel = "no models available"

// FolderSelectProvider returns the standard provider for model-selection
// fields. It enumerates first-level resource folders under the resolved
// opt folder and produces one selectable option per folder. The option
// marked selected is the explicit override default when one resolves, or
// the placeholder's own prior selection otherwise. An empty folder set
// yields exactly one disabled placeholder option.
//
// Tool definitions vary only defaultKey and subKeys; the discovery
// algorithm is shared.
func FolderSelectProvider(defaultKey config.CollectionKey, subKeys ...config.CollectionKey) FieldProvider {
	return func(cfg *config.Configuration, target config.Target, field Field) ([]Field, bool) {
		placeholder, ok := field.(SelectField)
		if !ok {
			return nil, false
		}

		folders := resource.ListFolders(resource.OptFolder(cfg, target, subKeys...))

		populated := SelectField{
			FieldMeta:   placeholder.FieldMeta,
			MultiSelect: placeholder.MultiSelect,
		}
		populated.Provider = ""

		if len(folders) == 0 {
			populated.Options = []Option{{
				Label:    NoModelsOptionLabel,
				Disabled: true,
			}}
			return []Field{populated}, true
		}

		explicit := cfg.Resolve(defaultKey)
		prior := make(map[string]bool)
		for _, value := range placeholder.SelectedValues() {
			prior[value] = true
		}

		options := make([]Option, 0, len(folders))
		for _, folder := range folders {
			selected := folder == explicit
			if explicit == "" {
				selected = prior[folder]
			}
			options = append(options, Option{
				Value:    folder,
				Label:    folder,
				Selected: selected,
			})
		}
		populated.Options = options
		return []Field{populated}, true
	}
}
