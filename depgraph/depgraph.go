// Package depgraph implements the dependency engine: cycle detection,
// topological ordering, and transitive closure over a project's result
// graph, with ties broken lexicographically for reproducible output.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/project"
)

// Graph wraps a project's results as a dependency DAG.
type Graph struct {
	p *project.Project
}

// New builds a Graph over p. It does not itself detect cycles; callers
// that have not already run project.Validate should call DSort or
// DListRecursive and handle the *CycleError they may return.
func New(p *project.Project) *Graph {
	return &Graph{p: p}
}

// CycleError reports the offending cycle.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %v", e.Cycle)
}

// DList returns r's direct dependencies, sorted.
func (g *Graph) DList(r string) ([]string, error) {
	res, ok := g.p.Results[r]
	if !ok {
		return nil, errs.New(errs.ReferenceNotFound, r, "no such result")
	}
	deps := append([]string(nil), res.Depends...)
	sort.Strings(deps)
	return deps, nil
}

const (
	white = iota
	grey
	black
)

// dfs performs the three-colour depth-first traversal shared by DSort and
// DListRecursive, visiting dependencies in lexicographic order for
// reproducible output.
func (g *Graph) dfs(seeds []string) (order []string, err error) {
	color := map[string]int{}
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = grey
		path = append(path, name)

		res, ok := g.p.Results[name]
		if !ok {
			return errs.New(errs.ReferenceNotFound, name, "no such result")
		}
		deps := append([]string(nil), res.Depends...)
		sort.Strings(deps)

		for _, d := range deps {
			switch color[d] {
			case white:
				if err := visit(d); err != nil {
					return err
				}
			case grey:
				idx := 0
				for i, n := range path {
					if n == d {
						idx = i
						break
					}
				}
				cycle := append(append([]string(nil), path[idx:]...), d)
				return &CycleError{Cycle: cycle}
			}
		}

		path = path[:len(path)-1]
		color[name] = black
		order = append(order, name)
		return nil
	}

	sorted := append([]string(nil), seeds...)
	sort.Strings(sorted)
	for _, s := range sorted {
		if color[s] == white {
			if err := visit(s); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// DSort returns the full topological order: a linear extension of the
// depends relation in which every result appears exactly once, ties
// broken lexicographically.
func (g *Graph) DSort() ([]string, error) {
	return g.dfs(project.SortedResultNames(g.p))
}

// DListRecursive returns the topologically ordered closure reachable
// from seeds.
func (g *Graph) DListRecursive(seeds []string) ([]string, error) {
	for _, s := range seeds {
		if _, ok := g.p.Results[s]; !ok {
			return nil, errs.New(errs.ReferenceNotFound, s, "no such result")
		}
	}
	return g.dfs(seeds)
}
