package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/e2core/e2/errs"
)

// Layout names the on-disk project tree the loader reads: a root
// directory containing .e2/ with e2version and per-entity YAML files
// declaring sources, results, chroot groups, licences, and servers. The
// config language itself is an external collaborator; this loader only
// decodes the typed record shapes package project defines, the way
// gangplank/internal/spec decodes JobSpec with yaml.v2 and "omitempty"
// dual tags.
const (
	dotDir         = ".e2"
	versionFile    = "e2version"
	sourcesFile    = "sources.yaml"
	resultsFile    = "results.yaml"
	chrootGroups   = "chrootgroups.yaml"
	licencesFile   = "licences.yaml"
	serversFile    = "servers.yaml"
	projectEnvFile = "env.yaml"
)

// Load reads a project rooted at dir and returns the typed, unvalidated
// Project; call Validate before using it.
func Load(dir string) (*Project, error) {
	p := New()

	ver, err := loadVersion(filepath.Join(dir, dotDir, versionFile))
	if err != nil {
		return nil, err
	}
	p.Version = ver

	var sources []Source
	if err := loadYAMLIfExists(filepath.Join(dir, dotDir, sourcesFile), &sources); err != nil {
		return nil, err
	}
	for i := range sources {
		s := sources[i]
		if s.Env == nil {
			s.Env = NewEnvironment()
		}
		p.Sources[s.Name] = &s
	}

	var results []Result
	if err := loadYAMLIfExists(filepath.Join(dir, dotDir, resultsFile), &results); err != nil {
		return nil, err
	}
	for i := range results {
		r := results[i]
		if r.Env == nil {
			r.Env = NewEnvironment()
		}
		p.Results[r.Name] = &r
	}

	var groups []ChrootGroup
	if err := loadYAMLIfExists(filepath.Join(dir, dotDir, chrootGroups), &groups); err != nil {
		return nil, err
	}
	for i := range groups {
		g := groups[i]
		p.ChrootGroups[g.Name] = &g
	}

	var licences []Licence
	if err := loadYAMLIfExists(filepath.Join(dir, dotDir, licencesFile), &licences); err != nil {
		return nil, err
	}
	for i := range licences {
		l := licences[i]
		p.Licences[l.Name] = &l
	}

	var servers []ServerEntry
	if err := loadYAMLIfExists(filepath.Join(dir, dotDir, serversFile), &servers); err != nil {
		return nil, err
	}
	for i := range servers {
		s := servers[i]
		p.Servers[s.Name] = &s
	}

	envPath := filepath.Join(dir, dotDir, projectEnvFile)
	if _, err := os.Stat(envPath); err == nil {
		var env Environment
		if err := loadYAML(envPath, &env); err != nil {
			return nil, err
		}
		p.Env = &env
	}

	return p, nil
}

func loadVersion(path string) (E2Version, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return E2Version{}, errs.Wrap(errs.IO, path, err, "reading e2version")
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return E2Version{}, errs.New(errs.Parse, path, fmt.Sprintf("expected 2 whitespace-separated tokens, got %d", len(fields)))
	}
	return E2Version{Branch: fields[0], Tag: fields[1]}, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.IO, path, err, "reading config file")
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errs.Wrap(errs.Parse, path, err, "decoding config file")
	}
	return nil
}

func loadYAMLIfExists(path string, out interface{}) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return loadYAML(path, out)
}
