package catalog

import (
	"strconv"
	"time"

	"github.com/folio-labs/ocrflow/model"
)

func intPtr(v int) *int { return &v }

var builtinDescriptors = []func() *Descriptor{
	tesseractRecognize,
	calamariRecognize,
	ocropyNlbin,
}

// Builtins returns the catalog of built-in tool descriptors.
func Builtins() *Catalog {
	catalog, err := New()
	if err != nil {
		panic(err) // New without descriptors cannot fail
	}
	for _, build := range builtinDescriptors {
		if err := catalog.Register(build()); err != nil {
			panic(err) // builtin ids are distinct by construction
		}
	}
	return catalog
}

// tesseractRecognize wraps the Tesseract text recognition step.
func tesseractRecognize() *Descriptor {
	return &Descriptor{
		ID:          "tesseract-recognize",
		Description: "Text recognition with Tesseract",
		Category:    CategoryRecognition,
		Program:     "tesseract",
		Weight:      0.25,
		GracePeriod: 10 * time.Second,
		Fields: []model.Field{
			model.SelectField{FieldMeta: model.FieldMeta{
				Argument: "model",
				Label:    "Recognition model",
				Provider: model.ProviderModelSelect,
			}},
			model.IntegerField{
				FieldMeta: model.FieldMeta{Argument: "dpi", Label: "Source resolution"},
				Minimum:   intPtr(0),
				Unit:      "dpi",
			},
			model.IntegerField{
				FieldMeta: model.FieldMeta{Argument: "psm", Label: "Page segmentation mode"},
				Default:   intPtr(3),
				Minimum:   intPtr(0),
				Maximum:   intPtr(13),
			},
		},
		Command: func(inv Invocation) []string {
			argv := []string{inv.InputPath, inv.OutputPath}
			if folder := inv.ResourceFolder; folder != "" {
				argv = append(argv, "--tessdata-dir", folder)
			}
			if models := inv.Arguments.Selection("model"); len(models) > 0 {
				argv = append(argv, "-l", joinModels(models))
			}
			if dpi := inv.Arguments.Integer("dpi", 0); dpi > 0 {
				argv = append(argv, "--dpi", strconv.Itoa(dpi))
			}
			argv = append(argv, "--psm", strconv.Itoa(inv.Arguments.Integer("psm", 3)))
			return argv
		},
	}
}

// calamariRecognize wraps the Calamari line recognition step.
func calamariRecognize() *Descriptor {
	return &Descriptor{
		ID:          "calamari-recognize",
		Description: "Line text recognition with Calamari",
		Category:    CategoryRecognition,
		Program:     "calamari-predict",
		Weight:      0.1,
		GracePeriod: 30 * time.Second,
		ExitPolicy:  ExitPolicyInterrupt,
		Fields: []model.Field{
			model.SelectField{
				FieldMeta: model.FieldMeta{
					Argument: "model",
					Label:    "Voting models",
					Provider: model.ProviderModelSelect,
				},
				MultiSelect: true,
			},
			model.IntegerField{
				FieldMeta: model.FieldMeta{Argument: "batch-size", Label: "Batch size"},
				Default:   intPtr(1),
				Minimum:   intPtr(1),
			},
			model.BooleanField{
				FieldMeta: model.FieldMeta{Argument: "no-progress-bars", Label: "Suppress progress bars"},
				Default:   true,
			},
		},
		Args: []string{
			"--checkpoint", "${model}",
			"--batch_size", "${batch-size}",
			"--no_progress_bars", "${no-progress-bars}",
			"--files", "${input}",
			"--output_dir", "${output}",
		},
	}
}

// ocropyNlbin wraps the ocropy binarization and deskewing step.
func ocropyNlbin() *Descriptor {
	return &Descriptor{
		ID:          "ocropy-nlbin",
		Description: "Binarization and deskewing with ocropus-nlbin",
		Category:    CategoryBinarization,
		Program:     "ocropus-nlbin",
		Weight:      0.5,
		GracePeriod: 5 * time.Second,
		Fields: []model.Field{
			model.IntegerField{
				FieldMeta: model.FieldMeta{Argument: "padding", Label: "Border padding"},
				Default:   intPtr(0),
				Minimum:   intPtr(0),
				Unit:      "px",
			},
			model.BooleanField{
				FieldMeta: model.FieldMeta{Argument: "nocheck", Label: "Disable error checking"},
			},
		},
		Args: []string{
			"--pad", "${padding}",
			"--nocheck", "${nocheck}",
			"--output", "${output}",
			"${input}",
		},
	}
}

func joinModels(models []string) string {
	out := models[0]
	for _, m := range models[1:] {
		out += "+" + m
	}
	return out
}
