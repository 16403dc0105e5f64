package titles

import "strings"

// charDampening keeps character overlap alone from out-ranking a genuine
// word match.
const charDampening = 0.9

// Score computes a similarity in [0,1] between two normalized titles.
//
// The primary signal is the word-overlap coefficient
// |intersection| / min(|A|, |B|), so a short subtitle fully contained in a
// longer title still scores 1.0. A character-set Jaccard fallback, dampened
// by 0.9, covers titles whose tokenization is degenerate (mostly
// non-separable script). Either title being empty scores 0.
func Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	word := wordOverlap(a, b)
	char := charJaccard(a, b) * charDampening
	if word >= char {
		return word
	}
	return char
}

func wordOverlap(a, b string) float64 {
	aw := Tokens(a)
	bw := Tokens(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}

	smaller, larger := aw, bw
	if len(bw) < len(aw) {
		smaller, larger = bw, aw
	}

	overlap := 0
	for w := range smaller {
		if larger[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(smaller))
}

func charJaccard(a, b string) float64 {
	ac := charSet(a)
	bc := charSet(b)
	if len(ac) == 0 || len(bc) == 0 {
		return 0
	}

	intersection := 0
	for r := range ac {
		if bc[r] {
			intersection++
		}
	}
	union := len(ac) + len(bc) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range strings.ReplaceAll(s, " ", "") {
		set[r] = true
	}
	return set
}
