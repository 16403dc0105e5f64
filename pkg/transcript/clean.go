// Package transcript retrieves and cleans episode transcripts from the
// platforms that host them.
package transcript

import "strings"

// Markers bound the usable portion of a raw transcript payload and list
// boilerplate phrases whose lines are dropped.
type Markers struct {
	Start string
	End   string

	// AvoidPhrases match generated speaker-label artifacts
	// (e.g. "דובר או דוברת מס 1:").
	AvoidPhrases []string
}

// Clean extracts the usable transcript text: only what lies strictly
// between the first start marker and the first end marker after it, with
// avoid-phrase lines dropped and the rest trimmed and rejoined.
//
// A missing marker pair yields "": no usable transcript, not an error.
func Clean(raw string, m Markers) string {
	start := strings.Index(raw, m.Start)
	if m.Start == "" || start < 0 {
		return ""
	}
	rest := raw[start+len(m.Start):]

	end := strings.Index(rest, m.End)
	if m.End == "" || end < 0 {
		return ""
	}
	content := rest[:end]

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || containsAny(line, m.AvoidPhrases) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func containsAny(line string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}
