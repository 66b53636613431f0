package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/stampede/internal/config"
	"github.com/wesleyorama2/stampede/internal/executor"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan>",
	Short: "Validate a test plan without running it",
	Long: `Check a plan against the plan schema and every referenced executor's
configuration schema. Nothing is launched and no artifacts are created.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := validatePlan(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid: %v\n", err)
			os.Exit(1)
		}
	},
}

func validatePlan(cmd *cobra.Command, planPath string) error {
	overrides, _ := cmd.Flags().GetStringArray("option")
	settingsDir, _ := cmd.Flags().GetString("settings-dir")

	plan, err := config.LoadPlan(planPath, settingsDir, overrides)
	if err != nil {
		return err
	}

	registry := executor.DefaultRegistry()
	for _, exec := range plan.Executions {
		spec := &executor.Spec{Name: exec.Name, Type: exec.Executor, Config: exec.Config}
		if spec.Config == nil {
			spec.Config = map[string]interface{}{}
		}
		if err := registry.Validate(spec); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Plan is valid: %d execution(s), policy %s\n",
		len(plan.Executions), plan.Settings.Policy)
	return nil
}

func init() {
	validateCmd.Flags().StringArrayP("option", "o", nil,
		"Override a plan value by dotted path (key.path=value, repeatable)")
	validateCmd.Flags().String("settings-dir", "",
		"Directory of YAML settings layers merged below the plan")
}
