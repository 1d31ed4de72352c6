package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/e2core/e2/cli"
	"github.com/e2core/e2/pipeline"
	"github.com/e2core/e2/project"
)

var playgroundSourceSet string

func init() {
	playgroundCmd.Flags().StringVar(&playgroundSourceSet, "source-set", "branch", "source set to prepare: tag, branch, working-copy, lazytag")
	cli.Root.AddCommand(playgroundCmd)
}

var playgroundCmd = &cobra.Command{
	Use:   "playground <result>",
	Short: "Provision a result's chroot and stop, leaving it mounted for inspection",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlayground,
}

func runPlayground(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, _, err := globalFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Options{
		Project:   st.proj,
		Cache:     st.cache,
		SCM:       st.scm,
		Store:     st.store,
		Chroot:    defaultChrootManager(projectDir, true),
		WorkRoot:  workRootFor(projectDir),
		SourceSet: project.SourceSet(playgroundSourceSet),
	})

	dir, _, err := p.Playground(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "chroot ready at %s\n", dir)
	fmt.Fprintln(cmd.OutOrStdout(), "it will not be cleaned up automatically; remove it manually when done")
	return nil
}
