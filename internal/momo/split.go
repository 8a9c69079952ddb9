package momo

import (
	"regexp"
	"strings"
)

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// Entry is one segment of a bulk import. Parsed is nil when the segment is
// not a recognized notification; it is still returned so it can be entered
// by hand.
type Entry struct {
	Raw    string
	Parsed Message
}

// Segments cuts a blob of pasted notifications on blank lines, returning
// the trimmed non-empty segments in source order.
func Segments(blob string) []string {
	blob = strings.ReplaceAll(blob, "\r\n", "\n")

	var segments []string
	for _, segment := range blankLineRe.Split(blob, -1) {
		segment = strings.TrimSpace(segment)
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// Split classifies each segment of blob, keeping source order.
func Split(blob string) []Entry {
	var entries []Entry
	for _, segment := range Segments(blob) {
		entries = append(entries, Entry{Raw: segment, Parsed: Parse(segment)})
	}
	return entries
}
