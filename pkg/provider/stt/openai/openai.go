// Package openai provides an stt.Provider backed by the OpenAI audio
// transcription API.
//
// The provider submits the recording as a single multipart POST to
// /v1/audio/transcriptions with response_format=text, so the response body is
// the transcript itself. Transient failures (network errors, HTTP 5xx, and
// 429 rate limits) are retried on a 0/500/1000 ms schedule; any other 4xx
// fails immediately.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voxpaste/voxpaste/internal/resilience"
	"github.com/voxpaste/voxpaste/pkg/provider/stt"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-transcribe"

	// defaultPrompt keeps the model from translating mixed-language speech.
	defaultPrompt = "Transcribe exactly what is spoken, preserving all languages (English, French, etc.) without translating."

	defaultTimeout = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the transcription model. Defaults to "gpt-4o-transcribe".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL (e.g., for a test server).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimSuffix(url, "/") }
}

// WithPrompt sets the transcription hint prompt sent with every request.
func WithPrompt(prompt string) Option {
	return func(p *Provider) { p.prompt = prompt }
}

// WithRetryPolicy overrides the default 0/500/1000 ms retry schedule.
func WithRetryPolicy(policy resilience.Policy) Option {
	return func(p *Provider) { p.retry = policy }
}

// Provider implements stt.Provider against the OpenAI transcription endpoint.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	prompt     string
	retry      resilience.Policy
	httpClient *http.Client
}

// New creates a Provider authenticating with apiKey. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		prompt:     defaultPrompt,
		retry:      resilience.DefaultPolicy,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "OpenAI" }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("openai: read audio file: %w", err)
	}
	filename := filepath.Base(audioPath)

	return resilience.DoWithResult(ctx, p.retry, func() (string, error) {
		return p.submit(ctx, audio, filename)
	})
}

// submit performs one multipart upload attempt. Errors from non-retryable
// HTTP statuses are marked permanent so the retry loop stops.
func (p *Provider) submit(ctx context.Context, audio []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", p.model); err != nil {
		return "", resilience.Permanent(fmt.Errorf("openai: write model field: %w", err))
	}
	if err := mw.WriteField("response_format", "text"); err != nil {
		return "", resilience.Permanent(fmt.Errorf("openai: write response_format field: %w", err))
	}
	if p.prompt != "" {
		if err := mw.WriteField("prompt", p.prompt); err != nil {
			return "", resilience.Permanent(fmt.Errorf("openai: write prompt field: %w", err))
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("openai: create form file: %w", err))
	}
	if _, err := fw.Write(audio); err != nil {
		return "", resilience.Permanent(fmt.Errorf("openai: write audio data: %w", err))
	}
	if err := mw.Close(); err != nil {
		return "", resilience.Permanent(fmt.Errorf("openai: close multipart writer: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("openai: create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("openai: transcription API returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
		if retryableStatus(resp.StatusCode) {
			return "", apiErr
		}
		return "", resilience.Permanent(apiErr)
	}

	return string(data), nil
}

// retryableStatus reports whether an HTTP status is worth resubmitting:
// server errors and rate limits, but no other client error.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
