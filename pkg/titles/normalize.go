// Package titles turns raw episode display titles into comparable canonical
// forms and scores how likely two of them name the same episode.
package titles

import "strings"

// quoteMarks are directional/quote punctuation that varies between platforms
// for the same Hebrew title (geresh, gershayim, ASCII apostrophe and quote).
var quoteMarks = []string{"׳", "״", "'", "\""}

// unsafeChars are characters that cannot appear in output filenames; they are
// stripped here so a title compares the same as its document name.
const unsafeChars = `\/*?:"<>|`

// Normalize returns the canonical comparable form of a display title.
// It is deterministic and total: an empty title normalizes to "".
//
// Steps, in order: strip quote punctuation, strip filesystem-unsafe
// characters, collapse whitespace runs, trim, lowercase.
func Normalize(title string) string {
	for _, m := range quoteMarks {
		title = strings.ReplaceAll(title, m, "")
	}

	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if strings.ContainsRune(unsafeChars, r) {
			continue
		}
		b.WriteRune(r)
	}

	collapsed := strings.Join(strings.Fields(b.String()), " ")
	return strings.ToLower(collapsed)
}

// Tokens splits a normalized title into its word set.
func Tokens(normalized string) map[string]bool {
	words := strings.Fields(normalized)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
