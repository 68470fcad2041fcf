// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a remote transcription API (e.g., OpenAI, Groq, or
// Gladia) and exposes a uniform batch interface so the ensemble orchestrator
// can transcribe a finished recording without coupling to any specific HTTP
// lifecycle. Streaming transcription is deliberately out of scope: the
// pipeline always operates on a completed WAV file.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation and deadlines on every network call.
package stt

import "context"

// Provider is the abstraction over any batch speech-to-text backend.
type Provider interface {
	// Name returns the short human-readable provider name (e.g., "OpenAI").
	// Used for ensemble result labelling, logging, and metrics attributes.
	Name() string

	// Transcribe uploads the audio file at audioPath and returns the
	// transcribed text. The text is returned as the backend produced it;
	// callers decide what whitespace-only output means.
	//
	// Implementations apply their own per-call retry policy where the
	// backend supports idempotent resubmission. The caller bounds the whole
	// call with a context deadline.
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
