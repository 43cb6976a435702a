package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// newTestRoot creates a fresh cobra root command wired to all subcommands.
// Each test gets an isolated command tree to avoid shared state.
func newTestRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "ocrflow",
		SilenceUsage: true,
	}
	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewDescribeCmd())
	root.AddCommand(NewModelsCmd())
	root.AddCommand(NewRunCmd())
	root.AddCommand(NewWatchCmd())
	return root
}

// executeCommand runs a cobra command with the given args and captures stdout/stderr.
func executeCommand(root *cobra.Command, args ...string) (stdout, stderr string, err error) {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

// writeTestFile creates a temporary file with the given content and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const testCatalogYAML = `tools:
  echo-recognize:
    description: Copies the input page to the output file
    category: recognition
    program: /bin/sh
    args: ["-c", "cat \"$0\" > \"$1\"", "${input}", "${output}"]
    fields:
      - type: integer
        argument: dpi
        label: DPI
        minimum: 72
      - type: boolean
        argument: deskew
        label: Deskew
`

func writeTestCatalog(t *testing.T) string {
	t.Helper()
	return writeTestFile(t, "catalog.yaml", testCatalogYAML)
}
