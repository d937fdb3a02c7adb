package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zenithsec/helmsman/internal/mission"
	"github.com/zenithsec/helmsman/internal/types"
	"github.com/zenithsec/helmsman/internal/util"
)

var (
	eventsLimit int
	eventsTask  string
	eventsType  []string
)

var eventsCmd = &cobra.Command{
	Use:   "events [mission-id]",
	Short: "Show persisted mission events",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEvents,
}

func runEvents(cmd *cobra.Command, args []string) error {
	if cfg.Events.StorePath == "" {
		return fmt.Errorf("event persistence is disabled (events.store_path is empty)")
	}
	storePath, err := util.ExpandPath(cfg.Events.StorePath)
	if err != nil {
		return err
	}
	store, err := mission.OpenSQLiteEventStore(storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	filter := mission.EventFilter{
		TaskID: eventsTask,
		Limit:  eventsLimit,
	}
	if len(args) == 1 {
		id, err := types.ParseID(args[0])
		if err != nil {
			return fmt.Errorf("invalid mission id: %w", err)
		}
		filter.MissionID = id
	}
	for _, t := range eventsType {
		filter.EventTypes = append(filter.EventTypes, mission.EventType(t))
	}

	events, err := store.Query(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		cmd.Println("No events found")
		return nil
	}

	for _, e := range events {
		line := fmt.Sprintf("%s  %-22s mission=%s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Type, e.MissionID)
		if e.TaskID != "" {
			line += " task=" + e.TaskID
		}
		if len(e.Payload) > 0 {
			if data, err := json.Marshal(e.Payload); err == nil {
				line += " " + string(data)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 100, "Maximum events to show")
	eventsCmd.Flags().StringVar(&eventsTask, "task", "", "Filter by task id")
	eventsCmd.Flags().StringSliceVar(&eventsType, "type", nil, "Filter by event type (repeatable)")
}
