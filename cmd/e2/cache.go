package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/e2core/e2/cli"
)

func init() {
	cacheCmd.AddCommand(cacheServersCmd, cacheWritebackCmd)
	cli.Root.AddCommand(cacheCmd)
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reconfigure the local content-mirror",
}

var cacheServersCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured cache servers",
	RunE:  runCacheServers,
}

func runCacheServers(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, _, err := globalFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}
	for _, name := range st.cache.Servers() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

var cacheWritebackCmd = &cobra.Command{
	Use:   "writeback <server> <true|false>",
	Short: "Toggle a server's writeback policy at runtime",
	Args:  cobra.ExactArgs(2),
	RunE:  runCacheWriteback,
}

func runCacheWriteback(cmd *cobra.Command, args []string) error {
	projectDir, cacheDir, storeDir, _, err := globalFlags(cmd)
	if err != nil {
		return err
	}
	st, err := buildStack(projectDir, cacheDir, storeDir)
	if err != nil {
		return err
	}
	enabled, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid bool %q: %w", args[1], err)
	}
	return st.cache.SetWriteback(args[0], enabled)
}
