// Package openai provides an llm.Completer backed by the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/voxpaste/voxpaste/internal/resilience"
	"github.com/voxpaste/voxpaste/pkg/provider/llm"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Compile-time assertion that Completer implements llm.Completer.
var _ llm.Completer = (*Completer)(nil)

// config holds optional configuration for the completer.
type config struct {
	model   string
	baseURL string
	timeout time.Duration
	retry   resilience.Policy
}

// Option is a functional option for Completer.
type Option func(*config)

// WithModel sets the chat model. Defaults to "gpt-4o-mini".
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithRetryPolicy overrides the default 0/500/1000 ms retry schedule.
func WithRetryPolicy(policy resilience.Policy) Option {
	return func(c *config) { c.retry = policy }
}

// Completer implements llm.Completer using the OpenAI API.
//
// Retries are handled here rather than by the SDK so the schedule matches
// the rest of the pipeline: transient failures (network errors, 5xx, 429)
// follow the resilience policy, any other API error fails immediately.
type Completer struct {
	client oai.Client
	model  string
	retry  resilience.Policy
}

// New constructs a Completer authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Completer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{
		model:   defaultModel,
		timeout: defaultTimeout,
		retry:   resilience.DefaultPolicy,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Completer{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		retry:  cfg.retry,
	}, nil
}

// Complete implements llm.Completer.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(req.System),
			oai.UserMessage(req.User),
		},
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	return resilience.DoWithResult(ctx, c.retry, func() (string, error) {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", classify(fmt.Errorf("openai: chat completion: %w", err))
		}
		if len(resp.Choices) == 0 {
			return "", resilience.Permanent(errors.New("openai: response has no choices"))
		}
		content := resp.Choices[0].Message.Content
		if content == "" {
			return "", resilience.Permanent(errors.New("openai: empty completion"))
		}
		return content, nil
	})
}

// classify marks API errors permanent unless the status code suggests a
// transient condition. Non-API errors (network, timeouts) stay retryable.
func classify(err error) error {
	var apiErr *oai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests {
		return err
	}
	return resilience.Permanent(err)
}
