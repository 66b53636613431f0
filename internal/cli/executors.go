package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/stampede/internal/executor"
)

var executorsCmd = &cobra.Command{
	Use:   "executors",
	Short: "List the available executor integrations",
	Run: func(cmd *cobra.Command, args []string) {
		listExecutors(cmd)
	},
}

func listExecutors(cmd *cobra.Command) {
	registry := executor.DefaultRegistry()
	verbose, _ := cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()

	for _, tag := range registry.Tags() {
		integ := registry.Get(tag)
		if integ == nil {
			continue
		}

		fmt.Fprintf(out, "%-18s %s\n", integ.Tag, integ.Description)
		if !verbose {
			continue
		}
		fmt.Fprintf(out, "  binary: %s\n", integ.Binary)
		for _, field := range integ.Fields {
			required := ""
			if field.Required {
				required = " (required)"
			}
			fmt.Fprintf(out, "  %-16s %s%s  %s\n", field.Name, field.Type, required, field.Description)
		}
		fmt.Fprintln(out)
	}
}

func init() {
	executorsCmd.Flags().BoolP("verbose", "v", false,
		"Show configuration fields for each integration")
}
