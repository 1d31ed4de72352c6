package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/e2core/e2/cli"
	"github.com/e2core/e2/project"
)

func init() {
	cli.Root.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the project's results in sorted order",
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, _, err := globalFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}
	for _, name := range project.SortedResultNames(st.proj) {
		r := st.proj.Results[name]
		fmt.Fprintf(cmd.OutOrStdout(), "%-30s depends=%v sources=%v\n", name, r.Depends, r.Sources)
	}
	return nil
}
