package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zenithsec/helmsman/internal/plan"
	"github.com/zenithsec/helmsman/internal/planner"
)

var (
	planOutFile      string
	planCapabilities []string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and validate mission plans",
}

var planNewCmd = &cobra.Command{
	Use:   "new <objective>",
	Short: "Generate a validated plan for an objective",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanNew,
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan-file>",
	Short: "Validate a plan file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanValidate,
}

func runPlanNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	objective := args[0]

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := planner.Request{
		Objective:            objective,
		RequiredCapabilities: planCapabilities,
		Settings: plan.Settings{
			MaxTasks:     cfg.Validation.MaxTasks,
			MaxDepth:     cfg.Validation.MaxDepth,
			MaxOutDegree: cfg.Validation.MaxOutDegree,
		},
	}

	name, err := a.factory.SelectBestPlanner(ctx, req)
	if err != nil {
		return err
	}
	instance, err := a.factory.Instantiate(ctx, name)
	if err != nil {
		return err
	}

	p, err := instance.BuildPlan(ctx, req)
	if recErr := a.factory.RecordOutcome(name, err == nil); recErr != nil {
		logger.Warn("failed to record planner outcome", "planner", name, "error", recErr)
	}
	if err != nil {
		return err
	}

	report := plan.NewValidator().Validate(p)
	printReport(cmd, p, report)

	if planOutFile != "" {
		if err := plan.SaveFile(planOutFile, p); err != nil {
			return err
		}
		cmd.Printf("Plan written to %s\n", planOutFile)
	}
	if !report.Valid() {
		return fmt.Errorf("plan failed validation with %d issue(s)", len(report.Issues))
	}
	return nil
}

func runPlanValidate(cmd *cobra.Command, args []string) error {
	p, err := plan.LoadFile(args[0])
	if err != nil {
		return err
	}
	if p.Settings == (plan.Settings{}) {
		p.Settings = plan.Settings{
			MaxTasks:     cfg.Validation.MaxTasks,
			MaxDepth:     cfg.Validation.MaxDepth,
			MaxOutDegree: cfg.Validation.MaxOutDegree,
		}
	}

	report := plan.NewValidator().Validate(p)
	printReport(cmd, p, report)
	if !report.Valid() {
		return fmt.Errorf("plan failed validation with %d issue(s)", len(report.Issues))
	}
	return nil
}

// printReport renders the validation outcome for terminal display.
func printReport(cmd *cobra.Command, p *plan.Plan, report *plan.Report) {
	cmd.Printf("Plan %s (%s): %d task(s)\n", p.ID, p.Planner, len(p.Tasks))

	for _, issue := range report.Issues {
		line := fmt.Sprintf("  ISSUE %s: %s", issue.Code, issue.Message)
		if len(issue.TaskIDs) > 0 {
			line += " [" + strings.Join(issue.TaskIDs, ", ") + "]"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	for _, warning := range report.Warnings {
		line := fmt.Sprintf("  WARN  %s: %s", warning.Code, warning.Message)
		if len(warning.TaskIDs) > 0 {
			line += " [" + strings.Join(warning.TaskIDs, ", ") + "]"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}

	if report.Valid() {
		stats := report.Stats
		cmd.Printf("Status: validated (depth %d, %d root(s), %d leaf(s), risk %.2f)\n",
			stats.Depth, stats.RootCount, stats.LeafCount, stats.RiskScore)
		cmd.Printf("Content hash:    %s\n", p.ContentHash)
		cmd.Printf("Structural hash: %s\n", p.StructuralHash)
	} else {
		cmd.Println("Status: invalid")
	}
}

func init() {
	planNewCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write the plan to a YAML file")
	planNewCmd.Flags().StringSliceVar(&planCapabilities, "capability", nil, "Required planner capability (repeatable)")

	planCmd.AddCommand(planNewCmd)
	planCmd.AddCommand(planValidateCmd)
}
