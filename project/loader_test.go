package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProjectTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll(%s): %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", path, err)
		}
	}
	return root
}

// TestE2VersionRoundTrip serializes {branch, tag} then parses, expecting
// an equal record back.
func TestE2VersionRoundTrip(t *testing.T) {
	want := E2Version{Branch: "master", Tag: "v3.2.1"}
	root := writeProjectTree(t, map[string]string{
		".e2/e2version": want.Branch + " " + want.Tag + "\n",
	})
	p, err := Load(root)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if p.Version != want {
		t.Fatalf("Load() version = %+v, want %+v", p.Version, want)
	}
}

func TestE2VersionMissingTokenIsParseError(t *testing.T) {
	root := writeProjectTree(t, map[string]string{
		".e2/e2version": "onlyonebranch\n",
	})
	if _, err := Load(root); err == nil {
		t.Fatal("Load() did not reject an e2version file missing a token")
	}
}

func TestLoadSourcesAndResults(t *testing.T) {
	root := writeProjectTree(t, map[string]string{
		".e2/e2version": "master v1\n",
		".e2/sources.yaml": `
- name: app
  type: git
  branch: master
  tag: "^"
  server: origin
`,
		".e2/results.yaml": `
- name: build-app
  sources: [app]
  script: make
`,
	})
	p, err := Load(root)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if p.Sources["app"] == nil {
		t.Fatal("Load() did not populate source \"app\"")
	}
	if p.Results["build-app"] == nil {
		t.Fatal("Load() did not populate result \"build-app\"")
	}
	if p.Results["build-app"].Env == nil {
		t.Fatal("Load() left a result's Env nil instead of an empty Environment")
	}
}

func TestLoadMissingOptionalFilesIsNotAnError(t *testing.T) {
	root := writeProjectTree(t, map[string]string{
		".e2/e2version": "master v1\n",
	})
	p, err := Load(root)
	if err != nil {
		t.Fatalf("Load() returned error when optional entity files are absent: %v", err)
	}
	if len(p.Sources) != 0 || len(p.Results) != 0 {
		t.Fatalf("Load() populated entities from nonexistent files")
	}
}
