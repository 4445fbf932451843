/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/expo_display/internal/events"
)

func TestNATSMessageRoundTrip(t *testing.T) {
	data, err := marshalNATSMessage(events.EventPhaseChanged, events.Payload{"from": "waiting", "to": "in_progress"}, "node-a")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msg, err := unmarshalNATSMessage(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventPhaseChanged || msg.NodeID != "node-a" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Payload["to"] != "in_progress" {
		t.Fatalf("payload lost: %v", msg.Payload)
	}
	if msg.MessageID == "" || msg.Timestamp.IsZero() {
		t.Fatal("expected message id and timestamp")
	}

	if _, err := unmarshalNATSMessage([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid message")
	}
}

func TestNATSBusFallsBackToLocal(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.MaxReconnects = 0
	cfg.Timeout = 200 * time.Millisecond

	local := events.NewBus()
	bus := NewNATSBus(cfg, local, zerolog.Nop())
	defer bus.Close()

	if bus.Connected() {
		t.Fatal("expected no NATS connection")
	}
	other := NewNATSBus(cfg, local, zerolog.Nop())
	defer other.Close()
	if bus.NodeID() == "" || other.NodeID() == bus.NodeID() {
		t.Fatalf("node ids not unique: %q %q", bus.NodeID(), other.NodeID())
	}
	if err := bus.Mirror(events.EventCountdownTick); err == nil {
		t.Fatal("expected Mirror to fail without a connection")
	}

	sub := bus.Subscribe(events.EventCountdownTick)
	defer bus.Unsubscribe(events.EventCountdownTick, sub)

	bus.Publish(events.EventCountdownTick, events.Payload{"n": 1})

	select {
	case payload := <-sub:
		if payload["n"] != 1 {
			t.Fatalf("unexpected payload: %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("local subscriber never received the event")
	}
}

func TestSubjectFlattensEventType(t *testing.T) {
	bus := &NATSBus{prefix: "expo.events"}
	if got := bus.subject(events.EventPresentationStart); got != "expo.events.presentation_start" {
		t.Fatalf("subject = %q", got)
	}
}
