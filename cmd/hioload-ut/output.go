// File: cmd/hioload-ut/output.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	labelColor = color.New(color.FgCyan)
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		setupColor(cmd)
		fmt.Fprintf(cmd.OutOrStdout(), "hioload-ut %s\n", okColor.Sprint(version))
	},
}

func setupColor(cmd *cobra.Command) {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", errColor.Sprint("error:"), err)
}

func printField(label string, value any) {
	fmt.Printf("%s %v\n", labelColor.Sprintf("%-14s", label+":"), value)
}
