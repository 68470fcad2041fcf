// Package gladia provides an stt.Provider backed by Gladia's asynchronous
// pre-recorded transcription API.
//
// Unlike the single-shot OpenAI-style endpoints, Gladia is a three step
// lifecycle: upload the audio, submit a transcription job referencing the
// uploaded URL, then poll the job's result URL until it reaches a terminal
// status. Gladia handles code-switched speech well, which is why it earns a
// slot in the ensemble despite the extra round trips.
package gladia

import (
	"bytes"
	"context"
	"encoding/json"
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
	defaultBaseURL      = "https://api.gladia.io"
	defaultPollInterval = time.Second
	defaultMaxPolls     = 30
	defaultTimeout      = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL (e.g., for a test server).
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimSuffix(url, "/") }
}

// WithPollInterval sets the delay between result polls. Defaults to 1s.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.pollInterval = d }
}

// WithMaxPolls sets how many result polls to attempt before giving up.
// Defaults to 30.
func WithMaxPolls(n int) Option {
	return func(p *Provider) { p.maxPolls = n }
}

// WithRetryPolicy overrides the retry schedule used for the upload and
// submit steps. Polling has its own schedule and is not affected.
func WithRetryPolicy(policy resilience.Policy) Option {
	return func(p *Provider) { p.retry = policy }
}

// Provider implements stt.Provider against the Gladia v2 API.
type Provider struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	maxPolls     int
	retry        resilience.Policy
	httpClient   *http.Client
}

// New creates a Provider authenticating with apiKey. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gladia: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		retry:        resilience.DefaultPolicy,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string { return "Gladia" }

// Transcribe implements stt.Provider. It uploads the audio, submits a
// transcription job and polls until the job completes or the context is
// cancelled.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("gladia: read audio file: %w", err)
	}

	audioURL, err := resilience.DoWithResult(ctx, p.retry, func() (string, error) {
		return p.upload(ctx, audio, filepath.Base(audioPath))
	})
	if err != nil {
		return "", err
	}

	resultURL, err := resilience.DoWithResult(ctx, p.retry, func() (string, error) {
		return p.submit(ctx, audioURL)
	})
	if err != nil {
		return "", err
	}

	return p.poll(ctx, resultURL)
}

type uploadResponse struct {
	AudioURL string `json:"audio_url"`
}

func (p *Provider) upload(ctx context.Context, audio []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("gladia: create form file: %w", err))
	}
	if _, err := fw.Write(audio); err != nil {
		return "", resilience.Permanent(fmt.Errorf("gladia: write audio data: %w", err))
	}
	if err := mw.Close(); err != nil {
		return "", resilience.Permanent(fmt.Errorf("gladia: close multipart writer: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/upload", &body)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("gladia: create upload request: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("x-gladia-key", p.apiKey)

	var out uploadResponse
	if err := p.do(req, &out); err != nil {
		return "", fmt.Errorf("gladia: upload: %w", err)
	}
	if out.AudioURL == "" {
		return "", resilience.Permanent(errors.New("gladia: upload response missing audio_url"))
	}
	return out.AudioURL, nil
}

type submitRequest struct {
	AudioURL            string `json:"audio_url"`
	DetectLanguage      bool   `json:"detect_language"`
	EnableCodeSwitching bool   `json:"enable_code_switching"`
}

type submitResponse struct {
	ResultURL string `json:"result_url"`
}

func (p *Provider) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(submitRequest{
		AudioURL:            audioURL,
		DetectLanguage:      true,
		EnableCodeSwitching: true,
	})
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("gladia: marshal submit request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/pre-recorded", bytes.NewReader(payload))
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("gladia: create submit request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-gladia-key", p.apiKey)

	var out submitResponse
	if err := p.do(req, &out); err != nil {
		return "", fmt.Errorf("gladia: submit: %w", err)
	}
	if out.ResultURL == "" {
		return "", resilience.Permanent(errors.New("gladia: submit response missing result_url"))
	}
	return out.ResultURL, nil
}

type pollResponse struct {
	Status string `json:"status"`
	Result struct {
		Transcription struct {
			FullTranscript string `json:"full_transcript"`
		} `json:"transcription"`
	} `json:"result"`
}

func (p *Provider) poll(ctx context.Context, resultURL string) (string, error) {
	for i := 0; i < p.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
		if err != nil {
			return "", fmt.Errorf("gladia: create poll request: %w", err)
		}
		req.Header.Set("x-gladia-key", p.apiKey)

		var out pollResponse
		if err := p.do(req, &out); err != nil {
			return "", fmt.Errorf("gladia: poll: %w", err)
		}

		switch out.Status {
		case "done":
			return out.Result.Transcription.FullTranscript, nil
		case "error":
			return "", errors.New("gladia: transcription job failed")
		}
	}
	return "", fmt.Errorf("gladia: transcription did not complete after %d polls", p.maxPolls)
}

// do executes req and decodes a JSON body into out. Non-2xx responses become
// errors, marked permanent unless the status suggests a transient condition.
func (p *Provider) do(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := fmt.Errorf("API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return apiErr
		}
		return resilience.Permanent(apiErr)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
