/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/expo_display/internal/clock"
	"github.com/friendsincode/expo_display/internal/countdown"
	"github.com/friendsincode/expo_display/internal/logging"
	"github.com/friendsincode/expo_display/internal/schedule"
)

var (
	checkURL      string
	checkField    string
	checkDuration time.Duration
	checkTimeout  time.Duration
	checkJSON     bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch the schedule once and print the countdown",
	Long: `Fetch and parse the presentation schedule a single time, then print the
upcoming starts and the countdown a display would show right now.

Examples:
  # Use EXPO_SCHEDULE_URL and the rest of the environment
  expodisplay check

  # Check a local file with a 15 minute presentation length
  expodisplay check --url ./schedule.json --duration 15m --json
`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkURL, "url", "", "Schedule location (defaults to EXPO_SCHEDULE_URL)")
	checkCmd.Flags().StringVar(&checkField, "field", schedule.DefaultField, "Document field holding the timestamps")
	checkCmd.Flags().DurationVar(&checkDuration, "duration", countdown.DefaultDuration, "Presentation length")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 5*time.Second, "Fetch timeout")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print JSON instead of text")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkURL == "" {
		if err := loadConfig(); err != nil {
			return err
		}
		checkURL = cfg.ScheduleURL
		if !cmd.Flags().Changed("field") {
			checkField = cfg.ScheduleField
		}
		if !cmd.Flags().Changed("duration") {
			checkDuration = cfg.PresentationDuration
		}
		if !cmd.Flags().Changed("timeout") {
			checkTimeout = cfg.FetchTimeout
		}
	} else {
		logger = logging.Setup("development")
	}

	source, err := schedule.NewSource(checkURL, checkTimeout)
	if err != nil {
		return fmt.Errorf("schedule source: %w", err)
	}

	// Keep stdout for the report.
	quiet := logger.Level(zerolog.WarnLevel)

	clk := clock.New()
	syncer := schedule.NewSynchronizer(source, clk, schedule.Options{Field: checkField}, quiet)

	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout+time.Second)
	defer cancel()

	res := syncer.Poll(ctx)
	switch {
	case res.Err != nil:
		return fmt.Errorf("schedule poll %s (%s): %w", res.Outcome, res.Reason, res.Err)
	case res.Outcome != schedule.OutcomeCommitted:
		return fmt.Errorf("schedule poll %s", res.Outcome)
	}

	engine := countdown.NewEngine(checkDuration, quiet)
	state := engine.Tick(clk.Now(), res.Snapshot, true)

	return printCheck(cmd.OutOrStdout(), source.Location(), res.Snapshot, state, checkJSON)
}

func printCheck(w io.Writer, location string, snap schedule.Snapshot, state countdown.State, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"source":  location,
			"entries": snap.Entries(),
			"state":   state,
		})
	}

	fmt.Fprintf(w, "Source:   %s\n", location)
	fmt.Fprintf(w, "Upcoming: %d\n", snap.Len())
	for _, entry := range snap.Entries() {
		fmt.Fprintf(w, "  - %s\n", entry.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(w, "Phase:    %s\n", state.Phase)
	fmt.Fprintf(w, "Clock:    %s\n", state.Clock)
	if state.Message != "" {
		fmt.Fprintf(w, "Message:  %s\n", state.Message)
	}
	return nil
}
