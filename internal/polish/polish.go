// Package polish cleans transcripts with an LLM.
//
// Two operations share one chat-completion backend: Polish cleans a single
// transcript (filler removal, punctuation, self-correction collapsing) and
// Fuse reconciles several providers' transcripts of the same audio into one.
// Learned dictionary entries are appended to the prompts so the model spells
// known names the way the user corrected them.
package polish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxpaste/voxpaste/internal/dictionary"
	"github.com/voxpaste/voxpaste/internal/ensemble"
	"github.com/voxpaste/voxpaste/pkg/provider/llm"
)

// Sampling parameters shared by both operations. The temperature is kept
// near zero so repeated runs of the same audio polish identically.
const (
	Temperature = 0.1
	MaxTokens   = 4096
)

const polishSystemPrompt = `Clean up this voice transcription. Output the COMPLETE cleaned text.

RULES:
1. Keep ALL content - do NOT remove or shorten anything
2. NEVER translate - keep original language(s) exactly (French stays French, English stays English, mixed stays mixed)
3. Remove only filler words: um, uh, like (as filler), you know, basically
4. Fix grammar but keep casual tone
5. Add punctuation
6. Self-corrections only: "Tuesday no wait Wednesday" -> "Wednesday"

Output the FULL cleaned transcription, nothing else.`

const fusionSystemPrompt = `You are a transcription expert. You will receive multiple transcriptions of the same audio from different speech recognition systems.

Your task:
1. ANALYZE all transcriptions to identify the most accurate version
2. RESOLVE disagreements by choosing the most likely correct words based on:
   - Agreement across multiple systems (consensus is usually correct)
   - Acoustic plausibility (words that sound similar in speech)
   - Grammatical correctness and natural language flow
   - Context and semantic coherence
3. CLEAN UP the result: remove filler words (um, uh, like), fix grammar, add punctuation
4. PRESERVE the speaker's intent and any language mixing (French/English stays mixed)

Output ONLY the final, cleaned transcription. No explanations.`

// deflectionPhrases mark completions where the model answered the prompt
// instead of cleaning the text. Matched case-insensitively as substrings.
var deflectionPhrases = []string{
	"i'm sorry",
	"i am sorry",
	"i can't",
	"i cannot",
	"i'd be happy to",
	"as an ai",
	"please provide",
	"provide more text",
}

// Client runs Polish and Fuse against an llm.Completer.
type Client struct {
	completer llm.Completer
	log       *slog.Logger
}

// NewClient creates a Client.
func NewClient(completer llm.Completer, log *slog.Logger) *Client {
	return &Client{completer: completer, log: log}
}

// Polish cleans a raw transcript. When the completion fails after retries
// the error is returned so the caller can fall back to the raw text; when
// the completion succeeds but looks like a model misfire (a deflection or
// an implausibly inflated answer), Polish falls back to raw itself.
func (c *Client) Polish(ctx context.Context, raw string, dict []dictionary.Entry) (string, error) {
	out, err := c.completer.Complete(ctx, llm.Request{
		System:      buildPolishPrompt(dict),
		User:        raw,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("polish: %w", err)
	}
	out = strings.TrimSpace(out)

	if reason, misfire := detectMisfire(raw, out); misfire {
		c.log.Warn("polish output rejected, keeping raw text",
			"reason", reason, "raw_chars", len(raw), "output_chars", len(out))
		return raw, nil
	}
	return out, nil
}

// Fuse reconciles two or more provider transcripts into one cleaned text.
// Unlike Polish there is no raw fallback: divergent transcripts have no
// single obvious original, so the error surfaces to the caller.
func (c *Client) Fuse(ctx context.Context, results []ensemble.Result, dict []dictionary.Entry) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("polish: no transcriptions to fuse")
	}

	out, err := c.completer.Complete(ctx, llm.Request{
		System:      fusionSystemPrompt,
		User:        buildFusionPrompt(results, dict),
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("polish: fuse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// buildPolishPrompt appends the personal dictionary to the polish system
// prompt when entries exist.
func buildPolishPrompt(dict []dictionary.Entry) string {
	if len(dict) == 0 {
		return polishSystemPrompt
	}
	var b strings.Builder
	b.WriteString(polishSystemPrompt)
	writeDictionaryBlock(&b, dict)
	return b.String()
}

// buildFusionPrompt labels each transcript with its provider and latency
// so the model can weigh fast, confident systems against slow ones.
func buildFusionPrompt(results []ensemble.Result, dict []dictionary.Entry) string {
	var b strings.Builder
	b.WriteString("Here are the transcriptions from different speech recognition systems:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "=== %s (%dms) ===\n%s\n\n", r.Provider, r.Latency.Milliseconds(), r.Text)
	}
	b.WriteString("Please fuse these into the most accurate single transcription.")
	if len(dict) > 0 {
		writeDictionaryBlock(&b, dict)
	}
	return b.String()
}

func writeDictionaryBlock(b *strings.Builder, dict []dictionary.Entry) {
	b.WriteString("\n\nPERSONAL DICTIONARY (use these exact spellings):\n")
	for _, e := range dict {
		fmt.Fprintf(b, "- %s -> %s\n", e.Original, e.Correction)
	}
}

// detectMisfire reports whether a polish completion should not be trusted.
func detectMisfire(raw, out string) (string, bool) {
	lower := strings.ToLower(out)
	for _, phrase := range deflectionPhrases {
		if strings.Contains(lower, phrase) {
			return "deflection phrase", true
		}
	}
	if len(out) > 3*len(raw) && len(out) > 50 {
		return "implausible length", true
	}
	return "", false
}
