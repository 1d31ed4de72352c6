package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/e2core/e2/cli"
	"github.com/e2core/e2/errs"
	"github.com/e2core/e2/pipeline"
	"github.com/e2core/e2/project"
)

var (
	buildSourceSet  string
	buildRelease    bool
	buildPlayground bool
	buildKeepChroot bool
	buildUseChroot  bool
	buildWCMode     bool
	buildAll        bool
)

func init() {
	buildCmd.Flags().StringVar(&buildSourceSet, "source-set", "branch", "source set to build: tag, branch, working-copy, lazytag")
	buildCmd.Flags().BoolVar(&buildRelease, "release", false, "run in release mode (tag source set, pushes, refuses working-copy)")
	buildCmd.Flags().BoolVar(&buildPlayground, "playground", false, "keep chroots around after the build for inspection")
	buildCmd.Flags().BoolVar(&buildKeepChroot, "keep-chroot", false, "alias for --playground")
	buildCmd.Flags().BoolVar(&buildUseChroot, "chroot", false, "build inside a provisioned chroot instead of the bare build directory")
	buildCmd.Flags().BoolVar(&buildWCMode, "wc-mode", false, "build the named results against their working copies (requires at least one result)")
	buildCmd.Flags().BoolVar(&buildAll, "all", false, "build every result in the project; mutually exclusive with naming results")
	cli.Root.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build [result...]",
	Short: "Build one or more results, and their dependencies, in order",
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, parallel, err := globalFlags(cmd)
	if err != nil {
		return err
	}

	if buildAll && len(args) > 0 {
		return fmt.Errorf("--all may not be combined with explicitly named results")
	}
	if buildWCMode && len(args) == 0 {
		return fmt.Errorf("--wc-mode requires at least one result")
	}
	if buildWCMode && buildRelease {
		return fmt.Errorf("--wc-mode and --release are mutually exclusive")
	}
	if buildPlayground && (len(args) != 1 || buildAll) {
		return fmt.Errorf("--playground requires selecting exactly one result")
	}
	if buildPlayground && buildRelease {
		return fmt.Errorf("--playground and --release are mutually exclusive")
	}

	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}

	ss := project.SourceSet(buildSourceSet)
	if buildRelease {
		ss = project.SourceSetTag
	}
	if buildWCMode {
		ss = project.SourceSetWorkingCopy
	}
	keep := buildPlayground || buildKeepChroot

	opts := pipeline.Options{
		Project:     st.proj,
		Cache:       st.cache,
		SCM:         st.scm,
		Store:       st.store,
		WorkRoot:    workRootFor(projectDir),
		SourceSet:   ss,
		Parallelism: parallel,
		Playground:  buildPlayground,
		ReleaseMode: buildRelease,
	}
	if buildUseChroot {
		opts.Chroot = defaultChrootManager(projectDir, keep)
	}

	p := pipeline.New(opts)
	if err := p.Run(context.Background(), args); err != nil {
		printStatuses(cmd, p)
		return err
	}
	printStatuses(cmd, p)
	return nil
}

func printStatuses(cmd *cobra.Command, p *pipeline.Pipeline) {
	for name, st := range p.Status() {
		line := fmt.Sprintf("%-30s %-20s", name, st.State)
		if st.BuildID != "" {
			line += " " + st.BuildID
		}
		if st.Err != nil {
			line += " " + errs.Chain(st.Err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}

// globalFlags reads the persistent flags registered on the root command.
// --parallel falls back to the project's .e2/defaults.yaml (if present)
// when the caller never set the flag explicitly.
func globalFlags(cmd *cobra.Command) (projectDir, cacheDir, storeDir string, parallel int, err error) {
	root := cmd.Root()
	if projectDir, err = root.PersistentFlags().GetString("project"); err != nil {
		return
	}
	if cacheDir, err = root.PersistentFlags().GetString("cache-dir"); err != nil {
		return
	}
	if storeDir, err = root.PersistentFlags().GetString("store-dir"); err != nil {
		return
	}
	if parallel, err = root.PersistentFlags().GetInt("parallel"); err != nil {
		return
	}
	projectDir = mustAbs(projectDir)

	if !root.PersistentFlags().Changed("parallel") {
		if d, derr := project.LoadDefaults(projectDir); derr == nil && d.Parallel > 0 {
			parallel = d.Parallel
		}
	}
	return
}
