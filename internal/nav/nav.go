// Package nav splits assistant text into display segments, lifting out
// [[NAV:KEY]] navigation directives.
package nav

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindText Kind = "text"
	KindNav  Kind = "nav"
)

// Segment is either a run of plain text or a navigation directive.
type Segment struct {
	Kind Kind   `json:"type"`
	Text string `json:"text,omitempty"`
	Key  string `json:"key,omitempty"`
}

var directiveRe = regexp.MustCompile(`\[\[NAV:([A-Z_]+)\]\]`)

// Parse splits text into segments in input order. Plain pieces are kept
// verbatim; empty ones next to directives are dropped. Text with no
// directive yields exactly one plain segment, even when empty.
func Parse(text string) []Segment {
	matches := directiveRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []Segment{{Kind: KindText, Text: text}}
	}

	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, Segment{Kind: KindText, Text: text[last:m[0]]})
		}
		segments = append(segments, Segment{Kind: KindNav, Key: text[m[2]:m[3]]})
		last = m[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Kind: KindText, Text: text[last:]})
	}
	return segments
}

// PlainText joins the text segments, dropping directives.
func PlainText(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == KindText {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// Keys returns the directive keys in order.
func Keys(segments []Segment) []string {
	var keys []string
	for _, s := range segments {
		if s.Kind == KindNav {
			keys = append(keys, s.Key)
		}
	}
	return keys
}
