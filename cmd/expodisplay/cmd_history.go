/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/expo_display/internal/db"
	"github.com/friendsincode/expo_display/internal/journal"
)

var (
	historyLimit         int
	historyPresentations bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent polls or presentation windows from the journal",
	Long: `Read the poll journal configured by EXPO_DB_BACKEND and EXPO_DB_DSN.

Examples:
  expodisplay history --limit 20
  expodisplay history --presentations
`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", journal.DefaultLimit, "Number of rows to show")
	historyCmd.Flags().BoolVar(&historyPresentations, "presentations", false, "Show presentation windows instead of polls")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if !cfg.JournalEnabled() {
		return fmt.Errorf("journal disabled: set EXPO_DB_DSN")
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect journal: %w", err)
	}
	defer db.Close(database)

	store := journal.New(database, cfg.InstanceID, logger)
	if err := store.Migrate(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if historyPresentations {
		rows, err := store.RecentPresentations(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "TARGET\tSTARTED\tENDED\tINSTANCE")
		for _, row := range rows {
			ended := "-"
			if row.EndedAt != nil {
				ended = row.EndedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				row.Target.Local().Format(time.DateTime),
				row.StartedAt.Local().Format(time.DateTime),
				ended,
				row.InstanceID)
		}
		return nil
	}

	rows, err := store.RecentPolls(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "POLLED\tOUTCOME\tENTRIES\tCHANGED\tREASON\tDURATION")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\t%dms\n",
			row.PolledAt.Local().Format(time.DateTime),
			row.Outcome,
			row.Entries,
			row.Changed,
			row.Reason,
			row.DurationMs)
	}
	return nil
}
