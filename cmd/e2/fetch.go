package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/e2core/e2/cli"
	"github.com/e2core/e2/project"
)

var fetchSourceSet string

func init() {
	fetchCmd.Flags().StringVar(&fetchSourceSet, "source-set", "branch", "source set to resolve while fetching: tag, branch, working-copy, lazytag")
	cli.Root.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [source...]",
	Short: "Fetch sources (all, or those named) without building",
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, _, err := globalFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		for n := range st.proj.Sources {
			names = append(names, n)
		}
	}

	ss := project.SourceSet(fetchSourceSet)
	for _, name := range names {
		src, ok := st.proj.Sources[name]
		if !ok {
			return fmt.Errorf("no such source: %s", name)
		}
		plugin, err := st.scm.For(src.Type)
		if err != nil {
			return err
		}
		if err := plugin.Fetch(src); err != nil {
			return err
		}
		if err := plugin.Update(src); err != nil {
			return err
		}
		resolved := project.ResolveSourceSet(ss, src.Tag)
		id, err := st.ident.SourceID(name, resolved)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-30s %s\n", name, id)
	}
	return nil
}
