package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ahsan-gpt-go/internal/config"

	"google.golang.org/genai"
)

// genaiClient 通过官方 SDK 调用 Gemini API，客户端在首次请求时才初始化。
type genaiClient struct {
	cfg config.LLMConfig

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGenAIClient creates a Client backed by google.golang.org/genai.
func NewGenAIClient(cfg config.LLMConfig) Client {
	return &genaiClient{cfg: cfg}
}

func (c *genaiClient) init(ctx context.Context) error {
	c.once.Do(func() {
		clientConfig := &genai.ClientConfig{
			APIKey:  c.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if c.cfg.TimeoutSeconds > 0 {
			clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(c.cfg.TimeoutSeconds) * time.Second}
		}
		if c.cfg.BaseURL != "" {
			clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
		}
		c.client, c.initErr = genai.NewClient(ctx, clientConfig)
	})
	return c.initErr
}

func (c *genaiClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if err := c.init(ctx); err != nil {
		return "", fmt.Errorf("failed to create genai client: %w", err)
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		SafetySettings: genaiSafetySettings(),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return "", fmt.Errorf("failed to call generate api: %w", stripURL(err))
	}

	if result == nil || len(result.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	first := result.Candidates[0].Content
	if first == nil || len(first.Parts) == 0 || first.Parts[0] == nil {
		return "", fmt.Errorf("%w: first candidate has no text part", ErrMalformedResponse)
	}
	part := first.Parts[0]
	if part.Text == "" && hasNonTextPayload(part) {
		return "", fmt.Errorf("%w: first candidate has no text part", ErrMalformedResponse)
	}
	return part.Text, nil
}

// hasNonTextPayload 报告分片是否携带文本以外的内容，例如内联数据或函数调用。
// SDK 无法区分缺失的 text 与空字符串，只有空分片才按空文本处理。
func hasNonTextPayload(p *genai.Part) bool {
	return p.InlineData != nil || p.FileData != nil ||
		p.FunctionCall != nil || p.FunctionResponse != nil ||
		p.ExecutableCode != nil || p.CodeExecutionResult != nil ||
		p.VideoMetadata != nil || p.Thought || len(p.ThoughtSignature) > 0
}

func genaiSafetySettings() []*genai.SafetySetting {
	settings := make([]*genai.SafetySetting, 0, len(DefaultSafetySettings))
	for _, s := range DefaultSafetySettings {
		settings = append(settings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	return settings
}
