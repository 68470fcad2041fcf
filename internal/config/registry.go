package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxpaste/voxpaste/pkg/provider/llm"
	"github.com/voxpaste/voxpaste/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// STTFactory builds a transcription provider from its override block and
// the resolved API key.
type STTFactory func(entry ProviderEntry, apiKey string) (stt.Provider, error)

// LLMFactory builds a chat-completion backend from its override block and
// the resolved API key.
type LLMFactory func(entry ProviderEntry, apiKey string) (llm.Completer, error)

// Registry maps provider names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]STTFactory
	llm map[string]LLMFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]STTFactory),
		llm: make(map[string]LLMFactory),
	}
}

// RegisterSTT registers a transcription provider factory under name,
// replacing any previous registration.
func (r *Registry) RegisterSTT(name string, f STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = f
}

// RegisterLLM registers a completion backend factory under name,
// replacing any previous registration.
func (r *Registry) RegisterLLM(name string, f LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = f
}

// CreateSTT constructs the named transcription provider.
func (r *Registry) CreateSTT(name string, entry ProviderEntry, apiKey string) (stt.Provider, error) {
	r.mu.RLock()
	f, ok := r.stt[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt %q", ErrProviderNotRegistered, name)
	}
	return f(entry, apiKey)
}

// CreateLLM constructs the named completion backend.
func (r *Registry) CreateLLM(name string, entry ProviderEntry, apiKey string) (llm.Completer, error) {
	r.mu.RLock()
	f, ok := r.llm[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm %q", ErrProviderNotRegistered, name)
	}
	return f(entry, apiKey)
}
