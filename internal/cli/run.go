package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/stampede/internal/config"
	"github.com/wesleyorama2/stampede/internal/executor"
	"github.com/wesleyorama2/stampede/internal/output"
	"github.com/wesleyorama2/stampede/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <plan>",
	Short: "Run a test plan",
	Long: `Execute the executors described in a YAML test plan, collect their
samples and write a consolidated report into a fresh run directory.

Plan values can be overridden from the command line:

  stampede run plan.yml -o settings.timeout=10m -o executions.0.vus=50

A run exits zero only when every executor completed; pass --best-effort
to accept partial success.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runPlan(cmd, args[0])
	},
}

func runPlan(cmd *cobra.Command, planPath string) {
	overrides, _ := cmd.Flags().GetStringArray("option")
	settingsDir, _ := cmd.Flags().GetString("settings-dir")
	sequential, _ := cmd.Flags().GetBool("sequential")
	logFile, _ := cmd.Flags().GetString("log-file")
	artifactsDir, _ := cmd.Flags().GetString("artifacts-dir")
	bestEffort, _ := cmd.Flags().GetBool("best-effort")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")

	plan, err := config.LoadPlan(planPath, settingsDir, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading plan: %v\n", err)
		os.Exit(2)
	}

	// Command-line flags take precedence over plan settings.
	if sequential {
		plan.Settings.Policy = config.PolicySequential
	}
	if artifactsDir != "" {
		plan.Settings.ArtifactsDir = artifactsDir
	}
	if bestEffort {
		plan.Settings.BestEffort = true
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := &runner.Controller{
		Registry: executor.DefaultRegistry(),
		LogFile:  logFile,
	}

	result, err := controller.RunPlan(ctx, plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if !quiet {
		printer := output.NewSummaryPrinter(os.Stdout, noColor)
		printer.Print(result.Document)
		fmt.Printf("\nArtifacts: %s\n", result.RunDir)
	}

	os.Exit(result.ExitCode)
}

func init() {
	runCmd.Flags().StringArrayP("option", "o", nil,
		"Override a plan value by dotted path (key.path=value, repeatable)")
	runCmd.Flags().String("settings-dir", "",
		"Directory of YAML settings layers merged below the plan")
	runCmd.Flags().Bool("sequential", false,
		"Force the sequential execution policy")
	runCmd.Flags().StringP("log-file", "l", "",
		"Path of the consolidated run log (defaults into the run directory)")
	runCmd.Flags().String("artifacts-dir", "",
		"Root directory for run artifacts")
	runCmd.Flags().Bool("best-effort", false,
		"Exit zero when at least one executor completed")
	runCmd.Flags().BoolP("quiet", "q", false,
		"Suppress the console summary")
	runCmd.Flags().Bool("no-color", false,
		"Disable colored output")
}
