package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/e2core/e2/cli"
)

func TestListPrintsResultsInSortedOrder(t *testing.T) {
	root := writeDependentResultsFixture(t)

	var out bytes.Buffer
	cli.Root.SetOut(&out)
	cli.Root.SetErr(&out)
	cli.Root.SetArgs([]string{"list", "--project", root})
	if err := cli.Root.Execute(); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	baseIdx := strings.Index(out.String(), "base")
	topIdx := strings.Index(out.String(), "top")
	if baseIdx < 0 || topIdx < 0 {
		t.Fatalf("list output missing a result: %q", out.String())
	}
	if baseIdx > topIdx {
		t.Fatalf("list did not print results in sorted (name) order: %q", out.String())
	}
}
