/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import "errors"

var (
	// ErrFetch marks a network or HTTP failure while retrieving the schedule document.
	ErrFetch = errors.New("schedule fetch failed")

	// ErrParse marks a schedule document that is not a JSON object.
	ErrParse = errors.New("schedule document malformed")
)

// failureReason maps a poll error to the label used in logs, metrics and the journal.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrFetch):
		return "fetch"
	default:
		return "unknown"
	}
}
