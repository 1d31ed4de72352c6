package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/e2core/e2/cli"
	"github.com/e2core/e2/depgraph"
)

func init() {
	cli.Root.AddCommand(dsortCmd)
}

var dsortCmd = &cobra.Command{
	Use:   "dsort [result...]",
	Short: "Print the topological build order (full project, or the closure of the named results)",
	RunE:  runDSort,
}

func runDSort(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, _, err := globalFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}

	g := depgraph.New(st.proj)
	var order []string
	if len(args) == 0 {
		order, err = g.DSort()
	} else {
		order, err = g.DListRecursive(args)
	}
	if err != nil {
		return err
	}
	for _, name := range order {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
