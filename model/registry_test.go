package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/folio-labs/ocrflow/config"
)

func keyModelDefault(namespace string) config.CollectionKey {
	return config.CollectionKey{Namespace: namespace, Key: "default-model"}
}

func setupModelDirs(t *testing.T, folders ...string) (config.Target, *config.Configuration) {
	t.Helper()
	root := t.TempDir()
	base := filepath.Join(root, "ocrflow", "models")
	if err := os.MkdirAll(base, 0o750); err != nil {
		t.Fatal(err)
	}
	for _, name := range folders {
		if err := os.Mkdir(filepath.Join(base, name), 0o750); err != nil {
			t.Fatal(err)
		}
	}
	return config.Target{Name: "test", OptRoot: root}, config.New(nil)
}

func placeholderField() SelectField {
	return SelectField{
		FieldMeta: FieldMeta{
			Argument: "model",
			Label:    "Recognition model",
			Provider: ProviderModelSelect,
		},
	}
}

func buildWithProvider(cfg *config.Configuration, target config.Target, namespace string, declared ...Field) *Model {
	reg := NewRegistry()
	reg.RegisterProvider(ProviderModelSelect, FolderSelectProvider(keyModelDefault(namespace), config.KeyModels))
	return reg.Build(cfg, target, declared)
}

func TestRegistry_PopulatesSelectOptions(t *testing.T) {
	target, cfg := setupModelDirs(t, "frak2021", "Latin", "english")

	m := buildWithProvider(cfg, target, "tesseract", placeholderField())

	field, ok := m.FieldByName("model")
	if !ok {
		t.Fatal("model field missing from built model")
	}
	sel, ok := field.(SelectField)
	if !ok {
		t.Fatalf("got %T, want SelectField", field)
	}
	if sel.Provider != "" {
		t.Errorf("populated field still carries provider key %q", sel.Provider)
	}

	var values []string
	for _, opt := range sel.Options {
		values = append(values, opt.Value)
	}
	want := []string{"english", "frak2021", "Latin"}
	if len(values) != len(want) {
		t.Fatalf("got options %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("option[%d] = %q, want %q (case-insensitive ascending)", i, values[i], want[i])
		}
	}
}

func TestRegistry_ExplicitDefaultSelected(t *testing.T) {
	target, cfg := setupModelDirs(t, "alpha", "beta")
	cfg.Set("tesseract", "default-model", "beta")

	m := buildWithProvider(cfg, target, "tesseract", placeholderField())
	sel := m.Fields()[0].(SelectField)

	got := sel.SelectedValues()
	if len(got) != 1 || got[0] != "beta" {
		t.Errorf("SelectedValues() = %v, want [beta]", got)
	}
}

func TestRegistry_PriorSelectionKept(t *testing.T) {
	target, cfg := setupModelDirs(t, "alpha", "beta")

	placeholder := placeholderField()
	placeholder.Options = []Option{{Value: "alpha", Selected: true}}

	m := buildWithProvider(cfg, target, "tesseract", placeholder)
	sel := m.Fields()[0].(SelectField)

	got := sel.SelectedValues()
	if len(got) != 1 || got[0] != "alpha" {
		t.Errorf("SelectedValues() = %v, want [alpha]", got)
	}
}

func TestRegistry_NoFoldersYieldsDisabledPlaceholder(t *testing.T) {
	target, cfg := setupModelDirs(t)

	m := buildWithProvider(cfg, target, "tesseract", placeholderField())
	sel := m.Fields()[0].(SelectField)

	if len(sel.Options) != 1 {
		t.Fatalf("got %d options, want exactly 1 placeholder", len(sel.Options))
	}
	opt := sel.Options[0]
	if !opt.Disabled || opt.Label != NoModelsOptionLabel {
		t.Errorf("placeholder option = %+v, want disabled %q", opt, NoModelsOptionLabel)
	}
}

func TestRegistry_StaticFieldsPassUnchanged(t *testing.T) {
	target, cfg := setupModelDirs(t)

	dpi := IntegerField{FieldMeta: FieldMeta{Argument: "dpi", Label: "DPI"}}
	m := buildWithProvider(cfg, target, "tesseract", dpi, placeholderField())

	fields := m.Fields()
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if fields[0].ArgumentName() != "dpi" {
		t.Errorf("field order not preserved: %q first", fields[0].ArgumentName())
	}
}

func TestRegistry_UnknownProviderLeavesField(t *testing.T) {
	target, cfg := setupModelDirs(t)

	placeholder := placeholderField()
	placeholder.Provider = "unregistered"

	m := NewRegistry().Build(cfg, target, []Field{placeholder})
	sel := m.Fields()[0].(SelectField)
	if sel.Provider != "unregistered" {
		t.Errorf("field was transformed by a provider that does not exist")
	}
}

func TestRegistry_RebuildObservesNewFolders(t *testing.T) {
	target, cfg := setupModelDirs(t, "alpha")
	reg := NewRegistry()
	reg.RegisterProvider(ProviderModelSelect, FolderSelectProvider(keyModelDefault("t"), config.KeyModels))

	m := reg.Build(cfg, target, []Field{placeholderField()})
	if got := len(m.Fields()[0].(SelectField).Options); got != 1 {
		t.Fatalf("first build: got %d options, want 1", got)
	}

	// A folder installed between builds must show up: models are never cached.
	base := filepath.Join(target.OptRoot, "ocrflow", "models")
	if err := os.Mkdir(filepath.Join(base, "beta"), 0o750); err != nil {
		t.Fatal(err)
	}

	m = reg.Build(cfg, target, []Field{placeholderField()})
	if got := len(m.Fields()[0].(SelectField).Options); got != 2 {
		t.Errorf("rebuild: got %d options, want 2", got)
	}
}

func TestArguments_Bag(t *testing.T) {
	bag := NewArguments(
		StringArgument{Name: "lang", Value: "deu"},
		IntegerArgument{Name: "dpi", Value: 300},
	)
	bag.Add(StringArgument{Name: "lang", Value: "frk"})

	if bag.Len() != 2 {
		t.Errorf("Len() = %d, want 2", bag.Len())
	}
	names := bag.Names()
	if len(names) != 2 || names[0] != "lang" || names[1] != "dpi" {
		t.Errorf("Names() = %v, want [lang dpi]", names)
	}
	arg, ok := bag.Get("lang")
	if !ok {
		t.Fatal("lang missing")
	}
	if s, ok := arg.(StringArgument); !ok || s.Value != "frk" {
		t.Errorf("replacement not applied: %+v", arg)
	}
}
