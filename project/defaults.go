package project

import (
	"bytes"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/e2core/e2/errs"
)

// Defaults is the project-wide fallback configuration consulted when a
// caller doesn't pin a value explicitly (e.g. the --parallel and
// --source-set flags). It is layered the way coreos-assembler's
// pipeline config is: a baked-in default, overridden field-by-field by
// an optional .e2/defaults.yaml in the project.
type Defaults struct {
	Parallel  int    `yaml:"parallel"`
	SourceSet string `yaml:"source_set"`
}

var builtinDefaults = []byte(`
parallel: 1
source_set: branch
`)

// LoadDefaults decodes the baked-in defaults, then overlays
// .e2/defaults.yaml if the project declares one. Both documents are
// decoded with KnownFields enabled so a typo'd key fails loudly instead
// of being silently ignored.
func LoadDefaults(projectDir string) (Defaults, error) {
	var d Defaults
	if err := decodeStrict(builtinDefaults, &d); err != nil {
		return Defaults{}, errs.Wrap(errs.Parse, "defaults", err, "decoding built-in defaults")
	}

	path := filepath.Join(projectDir, dotDir, "defaults.yaml")
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return Defaults{}, errs.Wrap(errs.IO, path, err, "reading defaults.yaml")
	}

	var override Defaults
	if err := decodeStrict(buf, &override); err != nil {
		return Defaults{}, errs.Wrap(errs.Parse, path, err, "decoding defaults.yaml")
	}
	if override.Parallel != 0 {
		d.Parallel = override.Parallel
	}
	if override.SourceSet != "" {
		d.SourceSet = override.SourceSet
	}
	return d, nil
}

func decodeStrict(buf []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	return dec.Decode(out)
}
