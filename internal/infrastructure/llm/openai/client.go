package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/servicing-triage/internal/infrastructure/llm"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Categories []string
}

// Client implements the classification model and amount tagger ports on top
// of the chat completions API.
type Client struct {
	client     *goopenai.Client
	model      string
	categories []string
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = goopenai.GPT3Dot5Turbo
	}
	return &Client{
		client:     goopenai.NewClientWithConfig(clientCfg),
		model:      model,
		categories: cfg.Categories,
		executor:   executor,
	}
}

func (c *Client) ClassifyRequest(ctx context.Context, subject, body string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: llm.ClassificationSystemPrompt(c.categories)},
			{Role: goopenai.ChatMessageRoleUser, Content: llm.ClassificationUserPrompt(subject, body)},
		},
		Temperature: 0,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	content, err := c.complete(ctx, "openai.classify", req)
	if err != nil {
		return "", err
	}
	return llm.ExtractJSONObject(content), nil
}

func (c *Client) TagAmount(ctx context.Context, excerpt, amount string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: llm.AmountTagPrompt(excerpt, amount)},
		},
		Temperature: 0,
		MaxTokens:   10,
	}
	return c.complete(ctx, "openai.tag_amount", req)
}

func (c *Client) complete(ctx context.Context, operation string, req goopenai.ChatCompletionRequest) (string, error) {
	resp, err := resilience.Do(ctx, c.executor, operation, func(callCtx context.Context) (goopenai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(callCtx, req)
	}, classifyOpenAIError)
	if err != nil {
		return "", resilience.WrapTemporary(operation, err, classifyOpenAIError)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
