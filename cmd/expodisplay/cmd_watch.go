/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/friendsincode/expo_display/internal/eventbus"
	"github.com/friendsincode/expo_display/internal/events"
)

var watchTicks bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow countdown events published by other displays over NATS",
	Long: `Subscribe to the NATS subjects a running display publishes to and print
each event as a JSON line. Requires EXPO_NATS_URL.

Examples:
  expodisplay watch
  expodisplay watch --ticks
`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchTicks, "ticks", false, "Include per-second countdown ticks")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.NATSURL == "" {
		return fmt.Errorf("EXPO_NATS_URL is not set")
	}

	natsCfg := eventbus.DefaultNATSConfig()
	natsCfg.URL = cfg.NATSURL
	natsCfg.Token = cfg.NATSToken
	natsCfg.SubjectPrefix = cfg.NATSSubjectPrefix

	local := events.NewBus()
	bus := eventbus.NewNATSBus(natsCfg, local, logger)
	defer bus.Close()
	if !bus.Connected() {
		return fmt.Errorf("could not reach NATS at %s", cfg.NATSURL)
	}

	types := []events.EventType{
		events.EventPhaseChanged,
		events.EventPresentationStart,
		events.EventPresentationEnd,
		events.EventScheduleUpdated,
		events.EventPollFailed,
	}
	if watchTicks {
		types = append(types, events.EventCountdownTick)
	}

	type line struct {
		Type    events.EventType `json:"type"`
		Payload events.Payload   `json:"payload"`
	}
	merged := make(chan line, 64)
	for _, t := range types {
		if err := bus.Mirror(t); err != nil {
			return err
		}
		sub := bus.Subscribe(t)
		defer bus.Unsubscribe(t, sub)
		go func(t events.EventType, sub events.Subscriber) {
			for payload := range sub {
				merged <- line{Type: t, Payload: payload}
			}
		}(t, sub)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "watching %d event types as node %s\n", len(types), bus.NodeID())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		select {
		case <-quit:
			return nil
		case l := <-merged:
			if err := enc.Encode(l); err != nil {
				return err
			}
		}
	}
}
