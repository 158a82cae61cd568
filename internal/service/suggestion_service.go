package service

import (
	"strings"

	"ahsan-gpt-go/internal/model"
)

// Intent 是对用户输入的粗略分类。
type Intent string

const (
	IntentQuestion     Intent = "question"
	IntentCommand      Intent = "command"
	IntentConversation Intent = "conversation"
)

// MaxSuggestions 是快捷回复的最大数量。
const MaxSuggestions = 3

type suggestionRule struct {
	keywords    []string
	suggestions []string
}

// 按优先级排列，第一个命中的类别生效。
var suggestionRules = []suggestionRule{
	{
		keywords:    []string{"code", "function", "implement"},
		suggestions: []string{"Can you explain this in more detail?", "Show me an example", "What are the best practices?"},
	},
	{
		keywords:    []string{"how", "what", "why"},
		suggestions: []string{"Can you give me an example?", "Tell me more", "What are the alternatives?"},
	},
	{
		keywords:    []string{"error", "issue", "problem"},
		suggestions: []string{"How do I fix this?", "What causes this?", "Show me a solution"},
	},
}

var defaultSuggestions = []string{"Tell me more", "Can you elaborate?", "What else should I know?"}

// SuggestReplies 根据最后一条助手消息给出最多三条快捷回复。
func SuggestReplies(lastAssistantText string) []string {
	lower := strings.ToLower(lastAssistantText)
	for _, rule := range suggestionRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return clip(rule.suggestions)
			}
		}
	}
	return clip(defaultSuggestions)
}

func clip(s []string) []string {
	n := len(s)
	if n > MaxSuggestions {
		n = MaxSuggestions
	}
	out := make([]string, n)
	copy(out, s[:n])
	return out
}

var (
	questionPrefixes = []string{"how ", "what ", "why ", "when ", "where ", "who "}
	commandPrefixes  = []string{"create ", "generate ", "write ", "build ", "make ", "show ", "explain "}
)

// DetectIntent 判断输入是提问、指令还是普通对话。
func DetectIntent(input string) Intent {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if strings.Contains(trimmed, "?") || hasAnyPrefix(trimmed, questionPrefixes) {
		return IntentQuestion
	}
	if hasAnyPrefix(trimmed, commandPrefixes) {
		return IntentCommand
	}
	return IntentConversation
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// EnhancePrompt 规范化用户输入。目前只去除首尾空白。
func EnhancePrompt(input string) string {
	return strings.TrimSpace(input)
}

var followUpPlaceholders = []string{
	"Ask a follow-up question...",
	"Continue the conversation...",
	"What else would you like to know?",
}

// SmartPlaceholder 根据会话长度返回输入框占位文本。
func SmartPlaceholder(conversationLength int) string {
	if conversationLength <= 0 {
		return "Ask Ahsan GPT anything..."
	}
	return followUpPlaceholders[conversationLength%len(followUpPlaceholders)]
}

var welcomeSuggestions = map[model.Mode][]string{
	model.ModeQuick: {
		"Explain quantum computing in simple terms",
		"What are the best practices for React?",
		"Help me plan a trip to Japan",
		"Compare TypeScript vs JavaScript",
	},
	model.ModeDeep: {
		"Analyze the impact of AI on education",
		"Compare microservices vs monolithic architecture",
		"Explain the implications of GPT-5",
	},
	model.ModeCreative: {
		"Write a short story about time travel",
		"Create a poem about the ocean at night",
		"Help me brainstorm startup ideas",
	},
	model.ModeResearch: {
		"Summarize recent advances in mRNA vaccines",
		"What are the key findings in climate science 2024?",
		"Compare different machine learning paradigms",
	},
	model.ModeDeveloper: {
		"Build a REST API with authentication",
		"Debug this React performance issue",
		"Design a scalable database schema",
	},
}

// WelcomeSuggestions 返回空会话欢迎页上的起始问题。
func WelcomeSuggestions(mode model.Mode) []string {
	s := welcomeSuggestions[mode]
	out := make([]string, len(s))
	copy(out, s)
	return out
}
