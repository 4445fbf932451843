/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		env      string
		override string
		want     zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "warn", zerolog.WarnLevel},
		{"development", "bogus", zerolog.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.override, func(t *testing.T) {
			t.Setenv("EXPO_LOG_LEVEL", tt.override)
			if got := levelFor(tt.env); got != tt.want {
				t.Fatalf("levelFor(%q) = %v, want %v", tt.env, got, tt.want)
			}
		})
	}
}

func TestNewLogger_CopiesJSONToAdditionalWriter(t *testing.T) {
	t.Setenv("EXPO_LOG_LEVEL", "")
	var out, extra bytes.Buffer

	logger := newLogger(&out, "production", &extra)
	logger.Info().Str("component", "display").Msg("runner started")

	if !strings.Contains(out.String(), `"message":"runner started"`) {
		t.Fatalf("production output should be JSON, got %q", out.String())
	}
	if !strings.Contains(extra.String(), `"component":"display"`) {
		t.Fatalf("additional writer missed the event: %q", extra.String())
	}
}
