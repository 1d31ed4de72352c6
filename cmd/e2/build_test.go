package main

import (
	"bytes"
	"testing"

	"github.com/e2core/e2/cli"
)

func resetBuildFlags() {
	buildSourceSet = "branch"
	buildRelease = false
	buildPlayground = false
	buildKeepChroot = false
	buildUseChroot = false
	buildWCMode = false
	buildAll = false
}

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	resetBuildFlags()
	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs(args)
	return cli.Root.Execute()
}

func TestBuildRejectsAllWithNamedResults(t *testing.T) {
	root := writeProjectFixture(t)
	if err := runRoot(t, "build", "--project", root, "--all", "build-app"); err == nil {
		t.Fatal("build --all with a named result did not error")
	}
}

func TestBuildRejectsWCModeWithoutResults(t *testing.T) {
	root := writeProjectFixture(t)
	if err := runRoot(t, "build", "--project", root, "--wc-mode"); err == nil {
		t.Fatal("build --wc-mode with no named results did not error")
	}
}

func TestBuildRejectsWCModeWithRelease(t *testing.T) {
	root := writeProjectFixture(t)
	if err := runRoot(t, "build", "--project", root, "--wc-mode", "--release", "build-app"); err == nil {
		t.Fatal("build --wc-mode --release did not error")
	}
}

func TestBuildRejectsPlaygroundWithMultipleResults(t *testing.T) {
	root := writeProjectFixture(t)
	if err := runRoot(t, "build", "--project", root, "--playground", "build-app", "other"); err == nil {
		t.Fatal("build --playground with multiple results did not error")
	}
}

func TestBuildRejectsPlaygroundWithRelease(t *testing.T) {
	root := writeProjectFixture(t)
	if err := runRoot(t, "build", "--project", root, "--playground", "--release", "build-app"); err == nil {
		t.Fatal("build --playground --release did not error")
	}
}
