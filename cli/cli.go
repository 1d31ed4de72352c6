// Package cli wires the e2 command surface onto cobra, the way the
// teacher pack's gangplank/cmd/gangplank wires its job-runner commands:
// one persistent root command carrying global flags (log level, project
// directory), subcommands registered in init, a PersistentPreRun that
// applies global flags before any subcommand body runs.
package cli

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/e2core/e2/internal/warnings"
)

// Version is set via -ldflags at build time.
var Version = "devel"

var (
	logLevel    string
	projectDir  string
	cacheDir    string
	storeDir    string
	parallelism int
	warnOn      []string
	warnOff     []string
)

// Root is the e2 root command; subcommands register themselves onto it
// from their own package-level init().
var Root = &cobra.Command{
	Use:   "e2",
	Short: "Reproducible, content-addressed build-dependency engine",
	Long: `e2 builds a project's declared results in dependency order,
fetching sources and chroot content through a pluggable cache/transport
layer and skipping any result whose buildid is already in the store.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	Root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	Root.PersistentFlags().StringVar(&projectDir, "project", ".", "project directory (location of .e2/)")
	Root.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache directory (default: $project/.e2/cache)")
	Root.PersistentFlags().StringVar(&storeDir, "store-dir", "", "result store directory (default: $project/.e2/store)")
	Root.PersistentFlags().IntVar(&parallelism, "parallel", 1, "maximum concurrent result builds")
	Root.PersistentFlags().StringArrayVar(&warnOn, "warn", nil, "enable a warning category (WDEFAULT, WDEPRECATED, WOTHER, WPOLICY, WHINT); repeatable")
	Root.PersistentFlags().StringArrayVar(&warnOff, "no-warn", nil, "silence a warning category; repeatable")

	Root.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "e2 version %s\n", Version)
		return nil
	},
}

func setup(cmd *cobra.Command, args []string) error {
	lvl, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	for _, name := range warnOff {
		cat, err := warnings.Parse(name)
		if err != nil {
			return err
		}
		warnings.Silence(cat)
	}
	for _, name := range warnOn {
		cat, err := warnings.Parse(name)
		if err != nil {
			return err
		}
		warnings.Unsilence(cat)
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
