package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/zenithsec/helmsman/internal/mission"
	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/types"
)

var (
	runPlanFile     string
	runCapabilities []string
	runConcurrency  int
)

var runCmd = &cobra.Command{
	Use:   "run [objective]",
	Short: "Run a mission end to end",
	Long: `Run selects a planner, generates and validates a plan for the
objective, and executes it. With --plan, the objective is skipped and
the given plan file is validated and executed directly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMission,
}

func runMission(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if runPlanFile != "" {
		return runPlanFileMission(cmd, a)
	}
	if len(args) == 0 {
		return fmt.Errorf("an objective or --plan is required")
	}

	result, err := a.service.Run(ctx, mission.RunRequest{
		Objective:            args[0],
		RequiredCapabilities: runCapabilities,
		Settings: plan.Settings{
			MaxTasks:     cfg.Validation.MaxTasks,
			MaxDepth:     cfg.Validation.MaxDepth,
			MaxOutDegree: cfg.Validation.MaxOutDegree,
		},
		ConcurrencyLimit: runConcurrency,
	})
	if result != nil && result.Mission != nil {
		cmd.Printf("Mission %s: %s\n", result.Mission.ID, result.Mission.Status)
	}
	if result != nil && result.Report != nil && result.Plan != nil {
		printReport(cmd, result.Plan, result.Report)
	}
	if result != nil && result.Execution != nil {
		printExecution(cmd, result.Execution)
	}
	return err
}

// runPlanFileMission validates and executes a plan loaded from disk,
// bypassing planner selection.
func runPlanFileMission(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()

	p, err := plan.LoadFile(runPlanFile)
	if err != nil {
		return err
	}
	report := plan.NewValidator().Validate(p)
	printReport(cmd, p, report)
	if !report.Valid() {
		return fmt.Errorf("plan failed validation with %d issue(s)", len(report.Issues))
	}

	result, err := a.orchestrator.Execute(ctx, p, mission.ExecutionContext{
		MissionID:        types.NewID(),
		ConcurrencyLimit: runConcurrency,
	})
	if result != nil {
		printExecution(cmd, result)
	}
	return err
}

// printExecution renders the per-task outcomes and totals.
func printExecution(cmd *cobra.Command, result *mission.ExecutionResult) {
	ids := make([]string, 0, len(result.TaskResults))
	for id := range result.TaskResults {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		tr := result.TaskResults[id]
		line := fmt.Sprintf("  %-12s %-10s %s", id, tr.Status, durationFlag(tr.Duration))
		if tr.Error != "" {
			line += "  " + tr.Error
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	cmd.Printf("Execution %s in %s: %d succeeded, %d failed, %d skipped\n",
		result.Status, durationFlag(result.Duration),
		result.Succeeded, result.Failed, result.Skipped)
}

func init() {
	runCmd.Flags().StringVar(&runPlanFile, "plan", "", "Execute an existing plan YAML file")
	runCmd.Flags().StringSliceVar(&runCapabilities, "capability", nil, "Required planner capability (repeatable)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Override the task concurrency limit")
}
