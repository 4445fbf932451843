/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultField is the document key holding the timestamp collection.
const DefaultField = "presentations"

// Layouts without a zone offset are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseDocument extracts the timestamp collection stored under field.
//
// Only a body that is not a JSON object is an error. A missing field, a field
// that is not an array, or any entry that cannot be read as a timestamp yields
// an empty collection.
func ParseDocument(data []byte, field string) ([]time.Time, error) {
	if field == "" {
		field = DefaultField
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document is null", ErrParse)
	}

	raw, ok := doc[field]
	if !ok {
		return nil, nil
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, nil
	}

	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		t, ok := ParseTimestamp(v)
		if !ok {
			return nil, nil
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseTimestamp reads an ISO-8601 style timestamp.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
