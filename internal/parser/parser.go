// Package parser splits raw chat log lines into their fields.
package parser

import (
	"strings"
	"time"
)

// Line is one chat log line split into its fields.
// The zero Line is returned for input that is not a chat line.
type Line struct {
	Timestamp string
	Channel   string
	Speaker   string
	Message   string
}

// Empty reports whether the line carried no channel and should be ignored.
func (l Line) Empty() bool {
	return l.Channel == ""
}

// Parse splits a raw chat log line into timestamp, channel, speaker and
// message. Lines that do not follow the chat grammar return the zero Line;
// Parse never fails.
func Parse(raw string) Line {
	// Trim trailing CR/LF for Windows CRLF compatibility
	raw = strings.TrimRight(raw, "\r\n")
	raw = strings.TrimPrefix(raw, byteOrderMark)

	match := linePattern.FindStringSubmatch(raw)
	if match == nil {
		return Line{}
	}
	return Line{
		Timestamp: match[1],
		Channel:   match[2],
		Speaker:   match[3],
		Message:   match[4],
	}
}

// ParseTime parses a line timestamp in the given location.
// A nil location means time.Local, matching the game client which writes
// local wall-clock time.
func ParseTime(ts string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimestampLayout, ts, loc)
}
