package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vexcheck/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "vexcheck",
	Short:         "Static ownership and borrow verifier for Vex modules",
	Long:          `vexcheck verifies serialized Vex IR modules (*.vxir): immutability, moves, borrows, and reference lifetimes. A module that passes may proceed to code generation.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func registerGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	cmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show per module")
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	registerGlobalFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
