// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/model"
	"ahsan-gpt-go/pkg/llm"
	"ahsan-gpt-go/pkg/log"
)

// FailureKind 对模型调用失败进行分类。
type FailureKind string

const (
	KindConfiguration FailureKind = "configuration"
	KindTransport     FailureKind = "transport"
	KindStatus        FailureKind = "status"
	KindParse         FailureKind = "parse"
)

// GatewayError 是 ModelGateway 返回的唯一错误类型。
type GatewayError struct {
	Kind  FailureKind
	Model string
	Err   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("model %s: %s failure: %v", e.Model, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// UserMessage 返回可以展示给用户的错误描述，不包含凭证或内部细节。
func (e *GatewayError) UserMessage() string {
	switch e.Kind {
	case KindConfiguration:
		return llm.ErrMissingAPIKey.Error()
	case KindStatus:
		var statusErr *llm.StatusError
		if errors.As(e.Err, &statusErr) {
			return fmt.Sprintf("API error: the model service responded with status %d", statusErr.StatusCode)
		}
		return "API error"
	case KindParse:
		return "The model returned a response that could not be read"
	case KindTransport:
		if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
			return "The request was cancelled before the model responded"
		}
		return "Failed to get response"
	}
	return "Failed to get response"
}

// ModelGateway 把会话历史转换为模型请求，并在主模型失败时切换一次备用模型。
type ModelGateway interface {
	Complete(ctx context.Context, history []model.ChatMessage, opts ...CompleteOption) (string, error)
}

type completeOptions struct {
	model string
}

// CompleteOption 调整单次 Complete 调用。
type CompleteOption func(*completeOptions)

// WithModel 指定本次调用首先使用的模型，为空时使用配置的主模型。
// 指定的模型就是备用模型时，失败后不再重复调用同一个模型。
func WithModel(name string) CompleteOption {
	return func(o *completeOptions) { o.model = name }
}

type modelGateway struct {
	client        llm.Client
	primaryModel  string
	fallbackModel string
}

// NewModelGateway 创建一个新的 ModelGateway。
func NewModelGateway(client llm.Client, cfg config.LLMConfig) ModelGateway {
	primary := cfg.PrimaryModel
	if primary == "" {
		primary = "gemini-2.5-flash"
	}
	fallback := cfg.FallbackModel
	if fallback == "" {
		fallback = "gemini-2.5-pro"
	}
	return &modelGateway{client: client, primaryModel: primary, fallbackModel: fallback}
}

// Complete 发送历史并返回助手回复。主模型失败时用同一请求重试备用模型一次，
// 备用模型也失败则直接返回错误，最多两次串行网络往返。
func (g *modelGateway) Complete(ctx context.Context, history []model.ChatMessage, opts ...CompleteOption) (string, error) {
	o := completeOptions{model: g.primaryModel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.model == "" {
		o.model = g.primaryModel
	}
	prompt := BuildPrompt(history)

	text, err := g.client.Generate(ctx, o.model, prompt)
	if err == nil {
		return text, nil
	}
	primaryErr := classify(o.model, err)
	if primaryErr.Kind == KindConfiguration || ctx.Err() != nil || o.model == g.fallbackModel {
		return "", primaryErr
	}

	log.Warnw("主模型调用失败，切换备用模型", "primary", o.model, "fallback", g.fallbackModel, "kind", primaryErr.Kind, "error", err)
	text, err = g.client.Generate(ctx, g.fallbackModel, prompt)
	if err != nil {
		fallbackErr := classify(g.fallbackModel, err)
		log.Warnw("备用模型调用失败", "model", g.fallbackModel, "kind", fallbackErr.Kind, "error", err)
		return "", fallbackErr
	}
	return text, nil
}

func classify(modelName string, err error) *GatewayError {
	kind := KindTransport
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		kind = KindConfiguration
	case errors.As(err, &statusErr):
		kind = KindStatus
	case errors.Is(err, llm.ErrMalformedResponse):
		kind = KindParse
	}
	return &GatewayError{Kind: kind, Model: modelName, Err: err}
}

// SanitizeContent 去除首尾空白并截断到 MaxContentChars 个字符。
func SanitizeContent(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > model.MaxContentChars {
		return string(runes[:model.MaxContentChars])
	}
	return s
}

// BuildPrompt 将历史展开为 "role: content" 行，用换行连接。
func BuildPrompt(history []model.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, SanitizeContent(m.Content)))
	}
	return strings.Join(lines, "\n")
}
