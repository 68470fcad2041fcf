package pipeline

import "strings"

// hallucinationPhrases are transcripts the speech models emit on silent or
// near-silent audio. Matched exactly after normalization; kept as a lookup
// table on purpose, fuzzy matching here would start eating real dictation.
var hallucinationPhrases = map[string]struct{}{
	"thank you":                       {},
	"thank you very much":             {},
	"thanks":                          {},
	"thanks for watching":             {},
	"thank you for watching":          {},
	"thank you so much for watching":  {},
	"bye":                             {},
	"bye-bye":                         {},
	"goodbye":                         {},
	"see you in the next video":       {},
	"subtitles by the amara.org community": {},
	"you": {},
}

// isHallucination reports whether a transcript is empty or exactly one of
// the known silent-audio hallucinations. Comparison trims whitespace,
// lowercases and strips a single trailing period, so "Thank you." matches.
func isHallucination(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.TrimSpace(strings.TrimSuffix(norm, "."))
	if norm == "" {
		return true
	}
	_, ok := hallucinationPhrases[norm]
	return ok
}
