/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ICalExport is an iCalendar rendering of a snapshot.
type ICalExport struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportICal renders every upcoming start in snap as a VEVENT lasting duration.
// UIDs derive from the start instant so calendar clients update rather than
// duplicate events across exports.
func ExportICal(snap Snapshot, title string, duration time.Duration, stamp time.Time) ICalExport {
	if title == "" {
		title = "Presentations"
	}

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Friends Incode//Expo Display//EN\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-CALNAME:%s\r\n", escapeICalText(title)))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for i, start := range snap.Entries() {
		uid := uuid.NewSHA1(uuid.NameSpaceURL, []byte("expo-display:"+formatICalTime(start)))

		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@expo-display\r\n", uid))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(stamp)))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(start)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(start.Add(duration))))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(fmt.Sprintf("%s #%d", title, i+1))))
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	return ICalExport{
		Data:        buf.Bytes(),
		Filename:    fmt.Sprintf("%s-%s.ics", slugify(title), stamp.UTC().Format("2006-01-02")),
		ContentType: "text/calendar; charset=utf-8",
	}
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
