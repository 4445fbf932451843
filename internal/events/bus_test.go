/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"testing"
	"time"
)

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(EventScheduleUpdated)
	b := bus.Subscribe(EventScheduleUpdated)
	other := bus.Subscribe(EventCountdownTick)

	bus.Publish(EventScheduleUpdated, Payload{"entries": 2})

	for i, sub := range []Subscriber{a, b} {
		select {
		case p := <-sub:
			if p["entries"] != 2 {
				t.Fatalf("subscriber %d got %v", i, p)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d timed out", i)
		}
	}

	select {
	case p := <-other:
		t.Fatalf("unexpected delivery to other event type: %v", p)
	default:
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventCountdownTick)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(EventCountdownTick, Payload{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(sub) != cap(sub) {
		t.Fatalf("expected buffer to be full, got %d/%d", len(sub), cap(sub))
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPhaseChanged)
	bus.Unsubscribe(EventPhaseChanged, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	if n := bus.SubscriberCount(EventPhaseChanged); n != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", n)
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventPhaseChanged, Payload{})
}
