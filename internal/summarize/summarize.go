// Package summarize produces LLM summaries of work items and of whole
// releases through an OpenAI-compatible chat completion endpoint.
package summarize

import (
	"context"
	"strings"

	"github.com/changelog-weaver/weaver/internal/errors"
	"github.com/changelog-weaver/weaver/internal/logging"
	"github.com/sashabaranov/go-openai"
)

// Summarizer turns a prompt into a summary.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Nop is a Summarizer that returns an empty summary. It is used when both
// summary gates are off, so no API key is needed.
type Nop struct{}

// Summarize returns "".
func (Nop) Summarize(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

// SystemPrompt is sent as the system message of every request.
const SystemPrompt = "You are a technical writer producing release notes. Reply with plain text only."

// Config holds the model settings
type Config struct {
	APIKey string
	// BaseURL overrides the API base URL, e.g. for Azure OpenAI or a local
	// OpenAI-compatible server
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAI summarizes through go-openai.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *logging.Logger
}

var _ Summarizer = (*OpenAI)(nil)

// NewOpenAI creates a summarizer. An API key is required unless BaseURL
// points at a server that does not need one.
func NewOpenAI(cfg Config, logger *logging.Logger) (*OpenAI, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.NewConfigError("model.api_key is required for summaries", errors.ErrSummarizerUnavailable).
			WithKey("model.api_key")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	logger.Debug("initializing summarizer", "model", cfg.Model)
	return &OpenAI{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.WithComponent("summarize"),
	}, nil
}

// Summarize sends prompt as a single user message and returns the first
// choice, trimmed.
func (o *OpenAI) Summarize(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if o.maxTokens > 0 {
		req.MaxCompletionTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		perr := errors.NewPlatformError("openai", "chat completion", err)
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
			perr.WithStatus(apiErr.HTTPStatusCode)
		}
		return "", perr
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewPlatformError("openai", "chat completion", errors.New("no choices returned"))
	}

	o.logger.Debug("received summary", "finish_reason", resp.Choices[0].FinishReason, "tokens", resp.Usage.TotalTokens)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
