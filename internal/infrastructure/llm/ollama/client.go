package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/servicing-triage/internal/infrastructure/llm"
	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	categories []string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string, categories []string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		categories: categories,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) ClassifyRequest(ctx context.Context, subject, body string) (string, error) {
	respText, err := c.generateJSON(ctx, llm.ClassificationPrompt(c.categories, subject, body))
	if err != nil {
		return "", err
	}
	return llm.ExtractJSONObject(respText), nil
}

func (c *Client) TagAmount(ctx context.Context, excerpt, amount string) (string, error) {
	return c.generateText(ctx, llm.AmountTagPrompt(excerpt, amount))
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0,
			"num_predict": 10,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	const operation = "ollama.generate"
	resp, err := resilience.Do(ctx, c.executor, operation, func(callCtx context.Context) (generateResponse, error) {
		return c.post(callCtx, "/api/generate", reqBody)
	}, classifyError)
	if err != nil {
		return "", resilience.WrapTemporary(operation, err, classifyError)
	}
	return strings.TrimSpace(resp.Response), nil
}
