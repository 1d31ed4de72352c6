package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/e2core/e2/cli"
	"github.com/e2core/e2/project"
)

// buildidCmd is the supplemented operation that surfaces a result's
// content-addressed buildid without running any part of the build,
// useful for scripting cache-hit checks or debugging identity mismatches.
var buildidSourceSet string

func init() {
	buildidCmd.Flags().StringVar(&buildidSourceSet, "source-set", "branch", "source set to resolve: tag, branch, working-copy, lazytag")
	cli.Root.AddCommand(buildidCmd)
}

var buildidCmd = &cobra.Command{
	Use:   "buildid <result>",
	Short: "Print a result's buildid for the given source set",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuildID,
}

func runBuildID(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, _, err := globalFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}
	id, err := st.ident.BuildID(args[0], project.SourceSet(buildidSourceSet))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
