package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/e2core/e2/cli"
)

func writeDependentResultsFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	e2dir := filepath.Join(root, ".e2")
	if err := os.MkdirAll(e2dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e2dir, "e2version"), []byte("master v1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile e2version: %v", err)
	}
	if err := os.WriteFile(filepath.Join(e2dir, "results.yaml"), []byte(`
- name: base
  script: "true"
- name: top
  depends: [base]
  script: "true"
`), 0o644); err != nil {
		t.Fatalf("WriteFile results.yaml: %v", err)
	}
	return root
}

func TestDSortOrdersDependenciesFirst(t *testing.T) {
	root := writeDependentResultsFixture(t)

	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs([]string{"dsort", "--project", root})
	if err := cli.Root.Execute(); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	lines := strings.Fields(out.String())
	baseIdx, topIdx := -1, -1
	for i, l := range lines {
		switch l {
		case "base":
			baseIdx = i
		case "top":
			topIdx = i
		}
	}
	if baseIdx < 0 || topIdx < 0 {
		t.Fatalf("dsort output missing a result: %q", out.String())
	}
	if baseIdx > topIdx {
		t.Fatalf("dsort printed \"top\" before its dependency \"base\": %q", out.String())
	}
}
