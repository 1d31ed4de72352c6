package identity

import (
	"testing"

	"github.com/e2core/e2/project"
)

// fakeSCM returns a fixed sourceid per source name, regardless of
// sourceSet, so tests can pin exact resultid/buildid values without
// shelling out to git.
type fakeSCM struct {
	ids map[string]string
}

func (f *fakeSCM) SourceID(src *project.Source, ss project.SourceSet, licenceIDs []string) (string, error) {
	return f.ids[src.Name], nil
}

func testProject() *project.Project {
	p := project.New()
	p.Sources["app"] = &project.Source{Name: "app", Type: project.SourceGit, Env: project.NewEnvironment(), Tag: "v1"}
	p.Results["build-app"] = &project.Result{
		Name:    "build-app",
		Sources: []string{"app"},
		Env:     project.NewEnvironment(),
		Script:  "make",
	}
	return p
}

// TestSourceIDWorkingCopySentinel is invariant 4: the working-copy
// source set always resolves to the fixed sentinel string.
func TestSourceIDWorkingCopySentinel(t *testing.T) {
	p := testProject()
	e := New(p, &fakeSCM{ids: map[string]string{"app": "deadbeef"}})
	id, err := e.SourceID("app", project.SourceSetWorkingCopy)
	if err != nil {
		t.Fatalf("SourceID() returned error: %v", err)
	}
	if id != project.WorkingCopySentinel {
		t.Fatalf("SourceID(working-copy) = %s, want %s", id, project.WorkingCopySentinel)
	}
}

// TestBuildIDWorkingCopyPropagates is the rest of invariant 4: a result
// whose sources include a working-copy source has a buildid equal to
// the sentinel, never a real hash.
func TestBuildIDWorkingCopyPropagates(t *testing.T) {
	p := testProject()
	e := New(p, &fakeSCM{ids: map[string]string{"app": "deadbeef"}})
	id, err := e.BuildID("build-app", project.SourceSetWorkingCopy)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	if id != project.WorkingCopySentinel {
		t.Fatalf("BuildID() = %s, want sentinel %s", id, project.WorkingCopySentinel)
	}
}

// TestBuildIDDeterministic is invariant 5: recomputing an id over
// unchanged inputs yields the same hex string.
func TestBuildIDDeterministic(t *testing.T) {
	p := testProject()
	e := New(p, &fakeSCM{ids: map[string]string{"app": "deadbeef"}})
	a, err := e.BuildID("build-app", project.SourceSetBranch)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	b, err := e.BuildID("build-app", project.SourceSetBranch)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	if a != b {
		t.Fatalf("BuildID() was not deterministic: %s != %s", a, b)
	}
}

// TestBuildIDChangesWithSource confirms the buildid is actually a
// function of its inputs, not a constant.
func TestBuildIDChangesWithSource(t *testing.T) {
	p := testProject()
	e1 := New(p, &fakeSCM{ids: map[string]string{"app": "deadbeef"}})
	e2 := New(p, &fakeSCM{ids: map[string]string{"app": "cafebabe"}})
	id1, err := e1.BuildID("build-app", project.SourceSetBranch)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	id2, err := e2.BuildID("build-app", project.SourceSetBranch)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("BuildID() did not change when the underlying sourceid changed")
	}
}

// TestBuildIDIncludesDependencies confirms a result's buildid changes
// when a dependency's buildid changes, even though the result's own
// resultid is unaffected.
func TestBuildIDIncludesDependencies(t *testing.T) {
	p := testProject()
	p.Sources["lib"] = &project.Source{Name: "lib", Type: project.SourceGit, Env: project.NewEnvironment(), Tag: "v1"}
	p.Results["build-lib"] = &project.Result{Name: "build-lib", Sources: []string{"lib"}, Env: project.NewEnvironment(), Script: "make lib"}
	p.Results["build-app"].Depends = []string{"build-lib"}

	e1 := New(p, &fakeSCM{ids: map[string]string{"app": "deadbeef", "lib": "aaaa"}})
	e2 := New(p, &fakeSCM{ids: map[string]string{"app": "deadbeef", "lib": "bbbb"}})

	id1, err := e1.BuildID("build-app", project.SourceSetBranch)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	id2, err := e2.BuildID("build-app", project.SourceSetBranch)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("build-app's buildid did not change when build-lib's sourceid changed")
	}
}

// TestBuildIDDependencyWorkingCopyPropagates confirms the sentinel
// propagates transitively: if a dependency is a working-copy build, the
// dependent is too.
func TestBuildIDDependencyWorkingCopyPropagates(t *testing.T) {
	p := testProject()
	p.Sources["lib"] = &project.Source{Name: "lib", Type: project.SourceGit, Env: project.NewEnvironment(), Tag: "v1"}
	p.Results["build-lib"] = &project.Result{Name: "build-lib", Sources: []string{"lib"}, Env: project.NewEnvironment(), Script: "make lib"}
	p.Results["build-app"].Depends = []string{"build-lib"}

	e := New(p, &fakeSCM{ids: map[string]string{"app": "deadbeef", "lib": "aaaa"}})
	id, err := e.BuildID("build-app", project.SourceSetWorkingCopy)
	if err != nil {
		t.Fatalf("BuildID() returned error: %v", err)
	}
	if id != project.WorkingCopySentinel {
		t.Fatalf("BuildID() = %s, want sentinel (propagated from build-lib)", id)
	}
}

func TestLicenceIDUnknownName(t *testing.T) {
	p := testProject()
	e := New(p, &fakeSCM{})
	if _, err := e.LicenceID("nope"); err == nil {
		t.Fatal("LicenceID() did not error on an unknown licence")
	}
}

func TestChrootGroupIDDeterministic(t *testing.T) {
	p := testProject()
	p.ChrootGroups["base"] = &project.ChrootGroup{
		Name: "base",
		Files: []project.FileRef{
			{Server: "origin", Location: "base.tar", SHA1: "abc123", TarType: "tar"},
		},
	}
	e := New(p, &fakeSCM{})
	a, err := e.ChrootGroupID("base")
	if err != nil {
		t.Fatalf("ChrootGroupID() returned error: %v", err)
	}
	b, err := e.ChrootGroupID("base")
	if err != nil {
		t.Fatalf("ChrootGroupID() returned error: %v", err)
	}
	if a != b {
		t.Fatalf("ChrootGroupID() was not deterministic: %s != %s", a, b)
	}
}
