// Package anthropic provides an LLM service adapter for the Anthropic
// Messages API built on the official Go SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/ratelimit"
	"github.com/custodia-labs/docchat/internal/retry"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL           = "https://api.anthropic.com"
	DefaultModel             = "claude-3-5-sonnet-latest"
	DefaultTimeout           = 120 * time.Second
	DefaultMaxTokens         = 1024
	DefaultRequestsPerSecond = 2
)

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Model defaults to claude-3-5-sonnet-latest.
	Model string

	// Timeout bounds each request (default: 120s).
	Timeout time.Duration

	// RequestsPerSecond caps outgoing requests. Negative disables the limit.
	RequestsPerSecond float64

	// Retry controls retries of transient failures.
	Retry retry.Config
}

// LLMService provides chat completions using the Anthropic API.
type LLMService struct {
	client  anthropic.Client
	model   string
	limiter *ratelimit.Limiter
	retry   retry.Config
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic: API key is required", domain.ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	// Retries are driven by internal/retry so every provider backs off alike.
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(0),
	)

	return &LLMService{
		client:  client,
		model:   cfg.Model,
		limiter: ratelimit.New(cfg.RequestsPerSecond, 1),
		retry:   cfg.Retry,
	}, nil
}

// Chat conducts a multi-turn conversation. System messages are joined
// into the top-level system prompt.
func (s *LLMService) Chat(
	ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions,
) (*driven.Generation, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(messages)),
	}
	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case driven.RoleSystem:
			system = append(system, msg.Content)
		case driven.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	gen, err := retry.Do(ctx, s.retry, "anthropic chat", func() (*driven.Generation, error) {
		return s.send(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return gen, nil
}

func (s *LLMService) send(ctx context.Context, params anthropic.MessageNewParams) (*driven.Generation, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}

	var raw *http.Response
	msg, err := s.client.Messages.New(ctx, params, option.WithResponseInto(&raw))
	if err != nil {
		return nil, s.wrapError(err)
	}
	if err := s.limiter.Observe(raw); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, retry.Permanent(errors.New("anthropic: no response content returned"))
	}

	return &driven.Generation{
		Content:    text.String(),
		TokenUsage: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

// wrapError maps SDK errors onto the retry classification.
func (s *LLMService) wrapError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("send request: %w", err)
	}
	if lerr := s.limiter.Observe(apiErr.Response); lerr != nil {
		return lerr
	}
	return &retry.StatusError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON()}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.Models.List(ctx, anthropic.ModelListParams{}); err != nil {
		return fmt.Errorf("%w: anthropic: ping failed: %v", domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
