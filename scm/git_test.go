package scm

import (
	"testing"

	"github.com/e2core/e2/project"
)

func TestMapGitURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ssh://git@example.com/repo.git", "git+ssh://git@example.com/repo.git"},
		{"scp://git@example.com/repo.git", "git+ssh://git@example.com/repo.git"},
		{"rsync+ssh://git@example.com/repo.git", "git+ssh://git@example.com/repo.git"},
		{"file:///srv/repos/app.git", "/srv/repos/app.git"},
		{"https://example.com/repo.git", "https://example.com/repo.git"},
		{"git://example.com/repo.git", "git://example.com/repo.git"},
	}
	for _, c := range cases {
		if got := mapGitURL(c.in); got != c.want {
			t.Errorf("mapGitURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDisplayRefVariants(t *testing.T) {
	src := &project.Source{Tag: "v1.0", Branch: "master"}
	cases := []struct {
		ss   project.SourceSet
		want string
	}{
		{project.SourceSetTag, "tag:v1.0"},
		{project.SourceSetBranch, "branch:master"},
		{project.SourceSetWorkingCopy, "working-copy"},
	}
	for _, c := range cases {
		if got := displayRef(src, c.ss); got != c.want {
			t.Errorf("displayRef(%v) = %q, want %q", c.ss, got, c.want)
		}
	}
}

func TestCheckRemoteEnabled(t *testing.T) {
	src := &project.Source{Env: project.NewEnvironment()}
	if checkRemoteEnabled(src) {
		t.Fatal("checkRemoteEnabled() true with no env key set")
	}
	src.Env.Set("e2.git.check_remote", "true")
	if !checkRemoteEnabled(src) {
		t.Fatal("checkRemoteEnabled() false after setting e2.git.check_remote=true")
	}
	src.Env.Set("e2.git.check_remote", "false")
	if checkRemoteEnabled(src) {
		t.Fatal("checkRemoteEnabled() true for explicit \"false\" value")
	}
}

func TestEnvIDOfIsOrderIndependentOverInsertion(t *testing.T) {
	a := project.NewEnvironment()
	a.Set("b", "2")
	a.Set("a", "1")

	b := project.NewEnvironment()
	b.Set("a", "1")
	b.Set("b", "2")

	sa := &project.Source{Env: a}
	sb := &project.Source{Env: b}
	if envIDOf(sa) != envIDOf(sb) {
		t.Fatal("envIDOf depended on insertion order, not key order")
	}
}
