package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/folio-labs/ocrflow/config"
	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/model"
)

func templateDescriptor() *Descriptor {
	return &Descriptor{
		ID:      "template-tool",
		Program: "template-tool",
		Args: []string{
			"--model", "${model}",
			"--dpi", "${dpi}",
			"--deskew", "${deskew}",
			"--suffix", "${suffix}",
			"${input}",
			"${output}",
		},
	}
}

func TestBuildCommandExpandsTemplate(t *testing.T) {
	args := core.NewProcessorArguments()
	args.Selections["model"] = []string{"frak2021", "latin"}
	args.Integers["dpi"] = 300
	args.Booleans["deskew"] = true
	args.Strings["suffix"] = ".txt"

	program, argv := templateDescriptor().BuildCommand(Invocation{
		Arguments:  args,
		InputPath:  "/in/page.png",
		OutputPath: "/out/page.txt",
	})
	if program != "template-tool" {
		t.Fatalf("program = %q", program)
	}
	want := []string{
		"--model", "frak2021+latin",
		"--dpi", "300",
		"--deskew",
		"--suffix", ".txt",
		"/in/page.png",
		"/out/page.txt",
	}
	assertArgv(t, argv, want)
}

func TestBuildCommandDropsDanglingFlags(t *testing.T) {
	// Nothing bound, no paths: every templated entry and its preceding
	// flag must disappear.
	program, argv := templateDescriptor().BuildCommand(Invocation{
		Arguments: core.NewProcessorArguments(),
	})
	if program != "template-tool" {
		t.Fatalf("program = %q", program)
	}
	if len(argv) != 0 {
		t.Fatalf("argv = %v, want empty", argv)
	}
}

func TestBuildCommandKeepsNegativeValueBeforeUnresolvedRef(t *testing.T) {
	args := core.NewProcessorArguments()
	args.Integers["shift"] = -2

	d := &Descriptor{
		ID:      "t",
		Program: "t",
		Args:    []string{"--shift", "${shift}", "${model}"},
	}
	_, argv := d.BuildCommand(Invocation{Arguments: args})
	// The unresolved ref must not swallow the expanded "-2"; only a
	// literal flag entry is droppable.
	assertArgv(t, argv, []string{"--shift", "-2"})
}

func TestBuildCommandFalseBooleanDropsFlag(t *testing.T) {
	args := core.NewProcessorArguments()
	args.Booleans["deskew"] = false

	d := &Descriptor{ID: "t", Program: "t", Args: []string{"--deskew", "${deskew}"}}
	_, argv := d.BuildCommand(Invocation{Arguments: args})
	if len(argv) != 0 {
		t.Fatalf("argv = %v, want empty for false boolean", argv)
	}
}

func TestBuildCommandAppendsPassthrough(t *testing.T) {
	args := core.NewProcessorArguments()
	args.Passthrough = []core.PassthroughArgument{
		{Name: "oem", Value: 1},
		{Name: "verbose", Value: true},
		{Name: "quiet", Value: false},
		{Name: "lang-dir", Value: "/opt/langs"},
	}

	d := &Descriptor{ID: "t", Program: "t"}
	_, argv := d.BuildCommand(Invocation{Arguments: args})
	want := []string{"--oem", "1", "--verbose", "--lang-dir", "/opt/langs"}
	assertArgv(t, argv, want)
}

func TestBuildCommandCustomBuilderWins(t *testing.T) {
	d := &Descriptor{
		ID:      "t",
		Program: "t",
		Args:    []string{"--ignored"},
		Command: func(inv Invocation) []string {
			return []string{"custom", inv.InputPath}
		},
	}
	_, argv := d.BuildCommand(Invocation{
		Arguments: core.NewProcessorArguments(),
		InputPath: "/in/page.png",
	})
	assertArgv(t, argv, []string{"custom", "/in/page.png"})
}

func assertArgv(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q (full %v)", i, got[i], want[i], got)
		}
	}
}

func modelDescriptor(id string) *Descriptor {
	return &Descriptor{
		ID:      id,
		Program: "sh",
		Fields: []model.Field{
			model.SelectField{FieldMeta: model.FieldMeta{
				Argument: "model",
				Label:    "Recognition model",
				Provider: model.ProviderModelSelect,
			}},
		},
	}
}

func installModel(t *testing.T, root, toolID, name string) {
	t.Helper()
	dir := filepath.Join(root, "ocrflow", "resources", toolID, name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
}

func TestPremiseBlocksMissingProgram(t *testing.T) {
	d := &Descriptor{ID: "t", Program: "definitely-not-installed-ocr-tool"}
	premise := d.Premise(config.New(nil), config.Target{})
	if !premise.Blocks() {
		t.Fatalf("premise = %+v, want blocking", premise)
	}
}

func TestPremiseWarnsWithoutModels(t *testing.T) {
	d := modelDescriptor("warn-tool")
	premise := d.Premise(config.New(nil), config.Target{OptRoot: t.TempDir()})
	if premise.Severity != core.SeverityWarning {
		t.Fatalf("severity = %s, want warning", premise.Severity)
	}
	if premise.Blocks() {
		t.Fatal("a missing model is advisory, not blocking")
	}
}

func TestPremiseOKWithInstalledModels(t *testing.T) {
	root := t.TempDir()
	d := modelDescriptor("ok-tool")
	installModel(t, root, "ok-tool", "frak2021")

	premise := d.Premise(config.New(nil), config.Target{OptRoot: root})
	if premise.Severity != core.SeverityOK {
		t.Fatalf("premise = %+v, want ok", premise)
	}
}

func TestModelPopulatesInstalledOptions(t *testing.T) {
	root := t.TempDir()
	d := modelDescriptor("opt-tool")
	installModel(t, root, "opt-tool", "frak2021")
	installModel(t, root, "opt-tool", "latin")

	m := d.Model(config.New(nil), config.Target{OptRoot: root})
	field, ok := m.FieldByName("model")
	if !ok {
		t.Fatal("model field missing from built model")
	}
	sel, ok := field.(model.SelectField)
	if !ok {
		t.Fatalf("field type = %T, want SelectField", field)
	}
	if sel.ProviderKey() != "" {
		t.Fatalf("provider key = %q, want cleared after population", sel.ProviderKey())
	}
	if len(sel.Options) != 2 || sel.Options[0].Value != "frak2021" || sel.Options[1].Value != "latin" {
		t.Fatalf("options = %+v, want frak2021 and latin", sel.Options)
	}
}

func TestResourceFolderStaysUnderOptRoot(t *testing.T) {
	root := t.TempDir()
	cfg := config.New(map[string]map[string]string{
		"": {"opt-resources": "../../../etc"},
	})

	d := modelDescriptor("escape-tool")
	folder := d.ResourceFolder(cfg, config.Target{OptRoot: root})
	base := filepath.Join(root, "ocrflow")
	if folder != base {
		t.Fatalf("folder = %q, want clamped to %q", folder, base)
	}
}
