package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/e2core/e2/cli"
)

func TestCacheWritebackRejectsUnknownServer(t *testing.T) {
	root := writeProjectFixture(t)
	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs([]string{"cache", "writeback", "--project", root, "no-such-server", "true"})
	if err := cli.Root.Execute(); err == nil {
		t.Fatal("cache writeback on an unconfigured server did not error")
	}
}

func TestCacheWritebackRejectsInvalidBool(t *testing.T) {
	root := writeProjectFixture(t)
	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs([]string{"cache", "writeback", "--project", root, "origin", "not-a-bool"})
	err := cli.Root.Execute()
	if err == nil {
		t.Fatal("cache writeback with a non-bool argument did not error")
	}
	if !strings.Contains(err.Error(), "invalid bool") {
		t.Fatalf("error = %q, want it to mention the invalid bool", err)
	}
}

func TestCacheServersListsNoneForFixtureWithoutServers(t *testing.T) {
	root := writeProjectFixture(t)
	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs([]string{"cache", "servers", "--project", root})
	if err := cli.Root.Execute(); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "" {
		t.Fatalf("cache servers printed output for a fixture with no configured servers: %q", out.String())
	}
}
