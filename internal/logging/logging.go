/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, nil)
}

// SetupWithWriter configures zerolog with an additional writer (e.g., for log buffer).
// The additional writer receives the raw JSON events.
func SetupWithWriter(environment string, additionalWriter io.Writer) zerolog.Logger {
	return newLogger(os.Stdout, environment, additionalWriter)
}

func newLogger(out io.Writer, environment string, additionalWriter io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer
	switch environment {
	case "production":
		// Log shippers want JSON in production.
		writer = out
	default:
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	if additionalWriter != nil {
		writer = zerolog.MultiLevelWriter(writer, additionalWriter)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(levelFor(environment))
	log.Logger = logger
	return logger
}

func levelFor(environment string) zerolog.Level {
	if level, err := zerolog.ParseLevel(os.Getenv("EXPO_LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		return level
	}
	if environment == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
