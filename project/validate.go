package project

import (
	"fmt"
	"sort"

	"github.com/e2core/e2/errs"
)

// Validate checks a project's cross-reference invariants (every source,
// chroot group, licence, and dependency a result names must exist) and
// returns the first violation found, as a typed error carrying the
// offending entity's name.
func Validate(p *Project) error {
	for name, src := range p.Sources {
		if name == "" {
			return errs.New(errs.Validation, "", "source name must not be empty")
		}
		if err := validateSourceKeys(src); err != nil {
			return err
		}
		for _, lic := range src.Licences {
			if _, ok := p.Licences[lic]; !ok {
				return errs.New(errs.ReferenceNotFound, lic, fmt.Sprintf("source %q references unknown licence", name))
			}
		}
		if src.Server != "" {
			if _, ok := p.Servers[src.Server]; !ok {
				return errs.New(errs.ReferenceNotFound, src.Server, fmt.Sprintf("source %q references unknown server", name))
			}
		}
		if src.Type == SourceGit {
			if src.Branch == "" || src.Tag == "" {
				return errs.New(errs.Validation, name, "git source requires both branch and tag (use \"^\" for a pseudo tag)")
			}
		}
		for _, f := range src.Files {
			if _, ok := p.Servers[f.Server]; !ok {
				return errs.New(errs.ReferenceNotFound, f.Server, fmt.Sprintf("source %q references unknown server", name))
			}
		}
	}

	for name, grp := range p.ChrootGroups {
		if name == "" {
			return errs.New(errs.Validation, "", "chroot group name must not be empty")
		}
		for _, f := range grp.Files {
			if _, ok := p.Servers[f.Server]; !ok {
				return errs.New(errs.ReferenceNotFound, f.Server, fmt.Sprintf("chroot group %q references unknown server", name))
			}
			if f.SHA1 == "" {
				return errs.New(errs.Validation, name, "chroot group file reference missing sha1")
			}
		}
	}

	for name, lic := range p.Licences {
		if name == "" {
			return errs.New(errs.Validation, "", "licence name must not be empty")
		}
		for _, f := range lic.Files {
			if _, ok := p.Servers[f.Server]; !ok {
				return errs.New(errs.ReferenceNotFound, f.Server, fmt.Sprintf("licence %q references unknown server", name))
			}
		}
	}

	for name, res := range p.Results {
		if name == "" {
			return errs.New(errs.Validation, "", "result name must not be empty")
		}
		if res.Script == "" {
			return errs.New(errs.Validation, name, "result has no build script")
		}
		for _, s := range res.Sources {
			if _, ok := p.Sources[s]; !ok {
				return errs.New(errs.ReferenceNotFound, s, fmt.Sprintf("result %q references unknown source", name))
			}
		}
		for _, g := range res.ChrootGroups {
			if _, ok := p.ChrootGroups[g]; !ok {
				return errs.New(errs.ReferenceNotFound, g, fmt.Sprintf("result %q references unknown chroot group", name))
			}
		}
		for _, d := range res.Depends {
			if _, ok := p.Results[d]; !ok {
				return errs.New(errs.ReferenceNotFound, d, fmt.Sprintf("result %q depends on unknown result", name))
			}
		}
	}

	if cyc := findCycle(p); cyc != nil {
		return errs.New(errs.DependencyCycle, "", fmt.Sprintf("cycle detected: %v", cyc))
	}

	return nil
}

var allowedSourceKeys = map[SourceType]map[string]bool{
	SourceGit:   {"name": true, "licences": true, "env": true, "server": true, "location": true, "branch": true, "tag": true},
	SourceSVN:   {"name": true, "licences": true, "env": true, "server": true, "location": true, "revision": true},
	SourceFiles: {"name": true, "licences": true, "env": true, "server": true, "location": true, "files": true},
}

// validateSourceKeys enforces "each source's declared keys are exactly
// the allowed set for its type". Since Source is a typed Go
// struct rather than a free-form map, the check is reduced to: the type
// tag is one we recognize, and the fields belonging to other types are
// left zero.
func validateSourceKeys(src *Source) error {
	switch src.Type {
	case SourceGit:
		if src.SVNLocation != "" || src.Revision != "" || len(src.Files) > 0 {
			return errs.New(errs.Validation, src.Name, "git source has fields from another source type")
		}
	case SourceSVN:
		if src.GitLocation != "" || src.Branch != "" || src.Tag != "" || len(src.Files) > 0 {
			return errs.New(errs.Validation, src.Name, "svn source has fields from another source type")
		}
	case SourceFiles:
		if src.GitLocation != "" || src.Branch != "" || src.Tag != "" || src.SVNLocation != "" || src.Revision != "" {
			return errs.New(errs.Validation, src.Name, "files source has fields from another source type")
		}
		if len(src.Files) == 0 {
			return errs.New(errs.Validation, src.Name, "files source declares no files")
		}
	default:
		return errs.New(errs.Validation, src.Name, fmt.Sprintf("unknown source type %q", src.Type))
	}
	return nil
}

// findCycle runs the three-colour DFS purely to validate acyclicity;
// the dependency engine (package depgraph) reuses the same algorithm
// for dsort()/dlist_recursive().
func findCycle(p *Project) []string {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	var path []string
	var cycle []string

	names := make([]string, 0, len(p.Results))
	for n := range p.Results {
		names = append(names, n)
	}
	sort.Strings(names)

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		path = append(path, name)
		deps := append([]string(nil), p.Results[name].Depends...)
		sort.Strings(deps)
		for _, d := range deps {
			switch color[d] {
			case white:
				if visit(d) {
					return true
				}
			case grey:
				idx := 0
				for i, n := range path {
					if n == d {
						idx = i
						break
					}
				}
				cycle = append(append([]string(nil), path[idx:]...), d)
				return true
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, n := range names {
		if color[n] == white {
			if visit(n) {
				return cycle
			}
		}
	}
	return nil
}
