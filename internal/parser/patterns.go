package parser

import "regexp"

// TimestampLayout is the timestamp format of chat log lines: "2024-01-15 23:59:59".
const TimestampLayout = "2006-01-02 15:04:05"

// byteOrderMark is the UTF-8 encoding of U+FEFF.
const byteOrderMark = "\ufeff"

// Matches: "2024-01-15 23:59:59 [System] [] You inflicted 45.5 points of damage"
// Captures: (1) timestamp, (2) channel, (3) speaker, (4) message
//
// The speaker group is lazy so that brackets inside the message do not
// extend it.
var linePattern = regexp.MustCompile(
	`^([\d-]+ [\d:]+) \[(\w+)\] \[(.*?)\] (.*)$`,
)
