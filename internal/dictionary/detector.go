package dictionary

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/voxpaste/voxpaste/internal/observe"
)

// DetectionDelay is how long after a paste the clipboard is compared
// against the pasted text.
const DetectionDelay = 10 * time.Second

// Reader reads the current clipboard text.
type Reader interface {
	ReadText() (string, error)
}

// Detector watches for a user correcting a pasted transcript. It waits a
// fixed window after the paste, then compares the clipboard against the
// pasted text and learns a single clear proper-noun substitution.
type Detector struct {
	store     *Store
	clipboard Reader
	delay     time.Duration
	log       *slog.Logger
	metrics   *observe.Metrics
}

// NewDetector creates a Detector that learns into store by reading
// clipboard after DetectionDelay.
func NewDetector(store *Store, clipboard Reader, log *slog.Logger) *Detector {
	return &Detector{
		store:     store,
		clipboard: clipboard,
		delay:     DetectionDelay,
		log:       log,
		metrics:   observe.DefaultMetrics(),
	}
}

// SetDelay overrides the detection window. Intended for tests.
func (d *Detector) SetDelay(delay time.Duration) { d.delay = delay }

// SetMetrics overrides the metrics instance. Intended for tests.
func (d *Detector) SetMetrics(m *observe.Metrics) { d.metrics = m }

// Schedule starts a detection window for pastedText on a new goroutine.
// It never blocks the caller; cancellation of ctx abandons the window.
func (d *Detector) Schedule(ctx context.Context, pastedText string) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.delay):
		}

		current, err := d.clipboard.ReadText()
		if err != nil {
			d.log.Debug("correction window: clipboard read failed", "error", err)
			return
		}

		original, correction, ok := DetectCorrection(pastedText, current)
		if !ok {
			return
		}
		if err := d.store.Upsert(original, correction); err != nil {
			d.log.Warn("correction window: failed to save correction",
				"original", original, "error", err)
			return
		}
		d.metrics.RecordCorrectionLearned(ctx)
		d.log.Info("learned correction", "original", original, "correction", correction)
	}()
}

// DetectCorrection compares the pasted text with the current clipboard
// content and reports a single learnable proper-noun correction, if any.
//
// Texts whose word counts differ by more than 2 are treated as unrelated
// edits. Candidates only exist at positions where equal-length word
// sequences differ, and exactly one accepted candidate is required;
// several differences suggest the user replaced the text, not fixed a name.
func DetectCorrection(pasted, current string) (original, correction string, ok bool) {
	if pasted == current {
		return "", "", false
	}

	pastedWords := strings.Fields(pasted)
	currentWords := strings.Fields(current)

	// Unequal word counts cannot be compared position by position, and a
	// count drift beyond 2 words means the user rewrote the text anyway.
	if len(pastedWords) != len(currentWords) {
		return "", "", false
	}

	var candidates int
	for i := range pastedWords {
		orig, corr := pastedWords[i], currentWords[i]
		if orig == corr {
			continue
		}
		if !acceptCandidate(orig, corr, sentenceInitial(pastedWords, i)) {
			continue
		}
		candidates++
		original, correction = orig, corr
	}

	if candidates != 1 {
		return "", "", false
	}
	return original, correction, true
}

// acceptCandidate decides whether a differing word pair is a learnable
// proper-noun correction.
func acceptCandidate(orig, corr string, atSentenceStart bool) bool {
	strippedCorr := strings.TrimFunc(corr, unicode.IsPunct)
	if strippedCorr == "" {
		return false
	}
	first := []rune(strippedCorr)[0]
	if !unicode.IsUpper(first) {
		return false
	}

	// A case-only change on a sentence-initial word is just the user
	// fixing capitalization, not a misheard name.
	if atSentenceStart && strings.EqualFold(orig, corr) {
		return false
	}

	strippedOrig := strings.TrimFunc(orig, unicode.IsPunct)
	threshold := 0.5
	if startsLower(strippedOrig) {
		threshold = 0.3
	}
	return similarity(strippedOrig, strippedCorr) > threshold
}

// sentenceInitial reports whether the word at index i starts a sentence.
func sentenceInitial(words []string, i int) bool {
	if i == 0 {
		return true
	}
	prev := words[i-1]
	return strings.HasSuffix(prev, ".") || strings.HasSuffix(prev, "!") || strings.HasSuffix(prev, "?")
}

func startsLower(word string) bool {
	for _, r := range word {
		return unicode.IsLower(r)
	}
	return false
}

// similarity is the fraction of positions holding the same character
// (case-insensitive) relative to the longer word's length.
func similarity(a, b string) float64 {
	ar := []rune(strings.ToLower(a))
	br := []rune(strings.ToLower(b))
	longer := len(ar)
	if len(br) > longer {
		longer = len(br)
	}
	if longer == 0 {
		return 0
	}
	shorter := len(ar)
	if len(br) < shorter {
		shorter = len(br)
	}
	matches := 0
	for i := 0; i < shorter; i++ {
		if ar[i] == br[i] {
			matches++
		}
	}
	return float64(matches) / float64(longer)
}
