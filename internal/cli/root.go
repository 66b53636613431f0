package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "stampede",
	Short:   "An orchestrator for heterogeneous load testing tools",
	Version: version,
	Long: `Stampede runs load tests by supervising external load generation tools
(k6, vegeta, apachebench, siege, molotov and others) as child processes,
collecting their metric samples into one consolidated report and keeping
every run's artifacts in a per-run directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(executorsCmd)
	RootCmd.AddCommand(validateCmd)
}
