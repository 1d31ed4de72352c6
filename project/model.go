// Package project holds the typed, immutable-after-load records of a
// project: Source, Result, ChrootGroup, Licence, Environment, SourceSet,
// BuildMode, and Server entries, plus the cross-reference validator that
// checks them once loaded.
//
// The on-disk configuration language is an external collaborator; this
// package only defines the shape the loader must produce and validates
// it once loaded, following the record layout of
// gangplank/internal/spec.JobSpec (yaml+json dual tags, nested value
// types).
package project

import "sort"

// FileRef is a single archive/patch file reference shared by ChrootGroup
// and the files-typed Source.
type FileRef struct {
	Server  string `yaml:"server" json:"server"`
	Location string `yaml:"location" json:"location"`
	SHA1    string `yaml:"sha1" json:"sha1"`
	Unpack  bool   `yaml:"unpack,omitempty" json:"unpack,omitempty"`
	Patch   bool   `yaml:"patch,omitempty" json:"patch,omitempty"`
	TarType string `yaml:"tartype,omitempty" json:"tartype,omitempty"`
}

// Environment is a name->value mapping plus the sorted-key view the
// hasher uses.
type Environment struct {
	vars map[string]string
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{vars: map[string]string{}}
}

// Set assigns a key, returning the receiver for chaining.
func (e *Environment) Set(k, v string) *Environment {
	e.vars[k] = v
	return e
}

// Get returns a value and whether it was present.
func (e *Environment) Get(k string) (string, bool) {
	v, ok := e.vars[k]
	return v, ok
}

// Keys returns the sorted key list backing the hasher's view.
func (e *Environment) Keys() []string {
	ks := make([]string, 0, len(e.vars))
	for k := range e.vars {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Len reports the number of keys.
func (e *Environment) Len() int { return len(e.vars) }

// UnmarshalYAML decodes an Environment from a plain "k: v" mapping, the
// shape every per-entity config file uses for its env block.
func (e *Environment) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var m map[string]string
	if err := unmarshal(&m); err != nil {
		return err
	}
	e.vars = m
	if e.vars == nil {
		e.vars = map[string]string{}
	}
	return nil
}

// MarshalYAML renders an Environment back to a plain mapping.
func (e *Environment) MarshalYAML() (interface{}, error) {
	return e.vars, nil
}

// Clone deep-copies the environment.
func (e *Environment) Clone() *Environment {
	out := NewEnvironment()
	for k, v := range e.vars {
		out.vars[k] = v
	}
	return out
}

// Merge folds other into e. When override is false, keys already present
// in e are left unchanged; when true, other's
// values win.
func (e *Environment) Merge(other *Environment, override bool) *Environment {
	out := e.Clone()
	for _, k := range other.Keys() {
		v, _ := other.Get(k)
		if _, exists := out.vars[k]; exists && !override {
			continue
		}
		out.vars[k] = v
	}
	return out
}

// SourceSet selects which revision class of a source to bind.
type SourceSet string

const (
	SourceSetTag         SourceSet = "tag"
	SourceSetBranch      SourceSet = "branch"
	SourceSetWorkingCopy SourceSet = "working-copy"
	SourceSetLazyTag     SourceSet = "lazytag"
)

// WorkingCopySentinel is the constant sourceid/buildid for the
// working-copy source set.
const WorkingCopySentinel = "working-copy"

// ResolveSourceSet is the single point that resolves "lazytag": tag
// unless tag == "^", in which case branch. Both the identity engine and
// the pipeline's source-preparation step call this, so they can never
// disagree).
func ResolveSourceSet(ss SourceSet, tag string) SourceSet {
	if ss != SourceSetLazyTag {
		return ss
	}
	if tag == "^" {
		return SourceSetBranch
	}
	return SourceSetTag
}

// SourceType names an SCM plug-in.
type SourceType string

const (
	SourceGit   SourceType = "git"
	SourceSVN   SourceType = "svn"
	SourceFiles SourceType = "files"
)

// Source is Source entity.
type Source struct {
	Name     string      `yaml:"name" json:"name"`
	Type     SourceType  `yaml:"type" json:"type"`
	Licences []string    `yaml:"licences,omitempty" json:"licences,omitempty"`
	Env      *Environment `yaml:"env,omitempty" json:"env,omitempty"`
	Server   string      `yaml:"server,omitempty" json:"server,omitempty"`
	Location string      `yaml:"location,omitempty" json:"location,omitempty"` // working-copy path on disk

	// git
	GitLocation string `yaml:"git_location,omitempty" json:"git_location,omitempty"`
	Branch      string `yaml:"branch,omitempty" json:"branch,omitempty"`
	Tag         string `yaml:"tag,omitempty" json:"tag,omitempty"`

	// svn
	SVNLocation string `yaml:"svn_location,omitempty" json:"svn_location,omitempty"`
	Revision    string `yaml:"revision,omitempty" json:"revision,omitempty"`

	// files
	Files []FileRef `yaml:"files,omitempty" json:"files,omitempty"`
}

// ChrootGroup is ChrootGroup entity.
type ChrootGroup struct {
	Name            string    `yaml:"name" json:"name"`
	Files           []FileRef `yaml:"files,omitempty" json:"files,omitempty"` // ordered
	GroupIDOverride string    `yaml:"groupid,omitempty" json:"groupid,omitempty"`
}

// Licence is Licence entity.
type Licence struct {
	Name  string    `yaml:"name" json:"name"`
	Files []FileRef `yaml:"files,omitempty" json:"files,omitempty"`
}

// Result is Result entity.
type Result struct {
	Name         string       `yaml:"name" json:"name"`
	Sources      []string     `yaml:"sources,omitempty" json:"sources,omitempty"`       // source names
	ChrootGroups []string     `yaml:"chroot_groups,omitempty" json:"chroot_groups,omitempty"` // chroot group names
	Depends      []string     `yaml:"depends,omitempty" json:"depends,omitempty"`       // result names
	Env          *Environment `yaml:"env,omitempty" json:"env,omitempty"`
	Script       string       `yaml:"script,omitempty" json:"script,omitempty"` // opaque build-script payload
}

// BuildMode bundles the policy knobs of "BuildMode".
type BuildMode struct {
	Name           string
	SourceSet      SourceSet
	Push           bool
	Sign           bool
	Deploy         bool
}

// Standard build modes.
var (
	ModeRelease     = BuildMode{Name: "release", SourceSet: SourceSetTag, Push: true, Sign: true, Deploy: true}
	ModeTag         = BuildMode{Name: "tag", SourceSet: SourceSetTag, Push: true}
	ModeBranch      = BuildMode{Name: "branch", SourceSet: SourceSetBranch}
	ModeWorkingCopy = BuildMode{Name: "working-copy", SourceSet: SourceSetWorkingCopy}
)

// ServerEntry is a configured cache server: its base URL template and
// fetch/push/writeback policy.
type ServerEntry struct {
	Name            string            `yaml:"name" json:"name"`
	URL             string            `yaml:"url" json:"url"`
	Cachable        bool              `yaml:"cachable,omitempty" json:"cachable,omitempty"`
	Cache           bool              `yaml:"cache,omitempty" json:"cache,omitempty"`
	IsLocal         bool              `yaml:"islocal,omitempty" json:"islocal,omitempty"`
	Writeback       bool              `yaml:"writeback,omitempty" json:"writeback,omitempty"`
	PushPermissions string            `yaml:"push_permissions,omitempty" json:"push_permissions,omitempty"`
	Flags           map[string]string `yaml:"flags,omitempty" json:"flags,omitempty"`
}

// E2Version is the parsed `.e2/e2version` file: one line, two
// whitespace-delimited tokens, branch then tag.
type E2Version struct {
	Branch string
	Tag    string
}

// Project is the fully loaded, validated model.
type Project struct {
	Version      E2Version
	Sources      map[string]*Source
	Results      map[string]*Result
	ChrootGroups map[string]*ChrootGroup
	Licences     map[string]*Licence
	Servers      map[string]*ServerEntry
	Env          *Environment // project-wide environment
}

// New returns an empty Project ready for the loader to populate.
func New() *Project {
	return &Project{
		Sources:      map[string]*Source{},
		Results:      map[string]*Result{},
		ChrootGroups: map[string]*ChrootGroup{},
		Licences:     map[string]*Licence{},
		Servers:      map[string]*ServerEntry{},
		Env:          NewEnvironment(),
	}
}

// SortedResultNames returns result names in sorted order, for the same
// reason resultid sorts its sourceids/chrootgroupids/licenceids: stable,
// order-independent output.
func SortedResultNames(p *Project) []string {
	ns := make([]string, 0, len(p.Results))
	for n := range p.Results {
		ns = append(ns, n)
	}
	sort.Strings(ns)
	return ns
}
