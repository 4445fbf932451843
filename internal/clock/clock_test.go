/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"context"
	"testing"
	"time"
)

func TestNewFake_AdvanceMovesNowAndFiresTickers(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 59, 0, 0, time.UTC)
	var clk Clock = NewFake(start)
	fake := clk.(Fake)

	if got := clk.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	ticker := clk.NewTicker(time.Second)
	defer StopTicker(ticker)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fake.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext() error = %v", err)
	}

	fake.Advance(time.Second)
	if got, want := clk.Now(), start.Add(time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}

	select {
	case at := <-ticker.Chan():
		if !at.Equal(start.Add(time.Second)) {
			t.Fatalf("tick at %v, want %v", at, start.Add(time.Second))
		}
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire after Advance")
	}
}

func TestStopTicker_DrainsPendingTick(t *testing.T) {
	fake := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := fake.NewTicker(time.Second)
	fake.Advance(time.Second)

	StopTicker(ticker)

	select {
	case <-ticker.Chan():
		t.Fatal("stale tick left on stopped ticker")
	default:
	}
}
