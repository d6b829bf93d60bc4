// File: cmd/hioload-ut/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Command hioload-ut runs echo and key-value demos on top of the user-thread
// socket facade.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "hioload-ut",
	Short:         "Blocking-style sockets for cooperative user threads",
	Long:          `hioload-ut drives user threads and an epoll reactor on one logical thread and ships echo and key-value demos built on them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(echoCmd)
	rootCmd.AddCommand(kvCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("codec", "", "packet codec (length|frame|raw)")
	rootCmd.PersistentFlags().Int("cpu", -1, "pin the engine driver to this logical CPU")

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
