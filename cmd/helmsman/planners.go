package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var plannersTelemetry bool

var plannersCmd = &cobra.Command{
	Use:   "planners",
	Short: "Show registered planners and their reliability",
	Args:  cobra.NoArgs,
	RunE:  runPlanners,
}

func runPlanners(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	records := a.factory.Records()
	if len(records) == 0 {
		cmd.Println("No planners registered")
		return nil
	}

	cmd.Printf("%-16s %-12s %-12s %-8s %s\n", "NAME", "STATE", "RELIABILITY", "FAILURES", "CAPABILITIES")
	for _, rec := range records {
		cmd.Printf("%-16s %-12s %-12.3f %-8d %s\n",
			rec.Name, rec.State, rec.Reliability,
			rec.ConsecutiveFailures, strings.Join(rec.Capabilities, ","))
		if rec.LastError != "" {
			cmd.Printf("  last error: %s\n", rec.LastError)
		}
	}

	if plannersTelemetry {
		entries := a.factory.Telemetry()
		if len(entries) == 0 {
			return nil
		}
		cmd.Println("\nRecent factory operations (oldest first):")
		for _, e := range entries {
			planner := e.Planner
			if planner == "" {
				planner = "-"
			}
			cmd.Printf("  %s %-12s %-16s %-8s %s\n",
				e.Timestamp.Format("15:04:05.000"), e.Operation, planner,
				e.Outcome, durationFlag(e.Duration))
		}
	}
	return nil
}

func init() {
	plannersCmd.Flags().BoolVar(&plannersTelemetry, "telemetry", false, "Include recent selection/instantiation telemetry")
}
