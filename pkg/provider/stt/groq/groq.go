// Package groq provides an stt.Provider backed by Groq's OpenAI-compatible
// audio transcription API.
//
// The wire shape mirrors the OpenAI endpoint: one multipart POST with
// response_format=text and the transcript as the raw response body. Groq's
// value in the ensemble is latency — whisper-large-v3 on their hardware
// usually returns first — so the client keeps the request path minimal.
package groq

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
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "whisper-large-v3"
	defaultTimeout = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the transcription model. Defaults to "whisper-large-v3".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL (e.g., for a test server).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimSuffix(url, "/") }
}

// WithLanguage sets an ISO-639-1 language hint. Empty (the default) lets the
// model auto-detect, which is what mixed-language dictation needs.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithRetryPolicy overrides the default 0/500/1000 ms retry schedule.
func WithRetryPolicy(policy resilience.Policy) Option {
	return func(p *Provider) { p.retry = policy }
}

// Provider implements stt.Provider against the Groq transcription endpoint.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	retry      resilience.Policy
	httpClient *http.Client
}

// New creates a Provider authenticating with apiKey. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("groq: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		retry:      resilience.DefaultPolicy,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "Groq" }

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("groq: read audio file: %w", err)
	}
	filename := filepath.Base(audioPath)

	return resilience.DoWithResult(ctx, p.retry, func() (string, error) {
		return p.submit(ctx, audio, filename)
	})
}

func (p *Provider) submit(ctx context.Context, audio []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", p.model); err != nil {
		return "", resilience.Permanent(fmt.Errorf("groq: write model field: %w", err))
	}
	if err := mw.WriteField("response_format", "text"); err != nil {
		return "", resilience.Permanent(fmt.Errorf("groq: write response_format field: %w", err))
	}
	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return "", resilience.Permanent(fmt.Errorf("groq: write language field: %w", err))
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("groq: create form file: %w", err))
	}
	if _, err := fw.Write(audio); err != nil {
		return "", resilience.Permanent(fmt.Errorf("groq: write audio data: %w", err))
	}
	if err := mw.Close(); err != nil {
		return "", resilience.Permanent(fmt.Errorf("groq: close multipart writer: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("groq: create request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("groq: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("groq: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("groq: transcription API returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", apiErr
		}
		return "", resilience.Permanent(apiErr)
	}

	return string(data), nil
}
