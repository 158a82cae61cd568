// Package llm provides clients for the hosted generative-text API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ahsan-gpt-go/internal/config"
)

// ErrMissingAPIKey is returned before any network call when no credential is configured.
var ErrMissingAPIKey = errors.New("LLM API key not configured")

// ErrMalformedResponse is returned when the payload has no first candidate text part.
var ErrMalformedResponse = errors.New("malformed model response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status %d: %s", e.StatusCode, e.Body)
}

// Client defines the interface for an LLM client.
type Client interface {
	// Generate 将扁平化后的 prompt 发送给指定模型，返回第一个候选的文本。
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// SafetySetting 对应 API 的内容安全阈值配置。
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// DefaultSafetySettings 对骚扰、仇恨、色情和危险内容统一拦截中等及以上级别。
var DefaultSafetySettings = []SafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents       []content       `json:"contents"`
	SafetySettings []SafetySetting `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

const maxErrorBody = 512

type restClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client based on the backend in the config.
func NewClient(cfg config.LLMConfig) Client {
	if cfg.Backend == "genai" {
		return NewGenAIClient(cfg)
	}
	return NewRESTClient(cfg, nil)
}

// NewRESTClient creates a client that calls the generateContent REST endpoint directly.
// httpClient may be nil.
func NewRESTClient(cfg config.LLMConfig, httpClient *http.Client) Client {
	if httpClient == nil {
		httpClient = &http.Client{}
		if cfg.TimeoutSeconds > 0 {
			httpClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
		}
	}
	return &restClient{cfg: cfg, client: httpClient}
}

func (c *restClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	reqBytes, err := json.Marshal(generateRequest{
		Contents:       []content{{Parts: []part{{Text: prompt}}}},
		SafetySettings: DefaultSafetySettings,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(model), url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// url.Error 会带上完整 URL（包括 key），这里只保留底层错误
		return "", fmt.Errorf("failed to call generate api: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes))}
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return firstText(payload)
}

func firstText(payload generateResponse) (string, error) {
	if len(payload.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	first := payload.Candidates[0].Content
	if first == nil || len(first.Parts) == 0 || first.Parts[0].Text == nil {
		return "", fmt.Errorf("%w: first candidate has no text part", ErrMalformedResponse)
	}
	return *first.Parts[0].Text, nil
}

func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
