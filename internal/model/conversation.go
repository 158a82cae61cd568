// Package model 包含了应用的数据模型定义。
package model

import (
	"fmt"
	"time"
)

// Role 标识消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem 只出现在发往模型网关的历史中，不会存入会话。
	RoleSystem Role = "system"
)

// Valid 报告 r 是否为可以持久化到会话中的角色。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	case RoleSystem:
		return false
	}
	return false
}

// MaxContentChars 是单条消息允许的最大字符数。
const MaxContentChars = 10000

// MaxTitleChars 是会话标题的最大字符数。
const MaxTitleChars = 40

// DefaultTitle 是新会话的默认标题。
const DefaultTitle = "New conversation"

// FileRef 只描述附件的元数据，核心层不保留文件内容。
type FileRef struct {
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	SizeBytes uint64 `json:"sizeBytes"`
}

// Message 代表会话中的一条消息。创建后不可修改。
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments []FileRef `json:"attachments,omitempty"`
}

// Mode 是会话的回答风格标签。
type Mode string

const (
	ModeQuick     Mode = "quick"
	ModeDeep      Mode = "deep"
	ModeCreative  Mode = "creative"
	ModeResearch  Mode = "research"
	ModeDeveloper Mode = "developer"
)

// Modes 按展示顺序列出所有模式。
var Modes = []Mode{ModeQuick, ModeDeep, ModeCreative, ModeResearch, ModeDeveloper}

// ParseMode 将字符串解析为 Mode。
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ModeInfo 描述一个模式在界面上的展示信息。
type ModeInfo struct {
	Mode        Mode   `json:"mode"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// ModeCatalog 是所有模式的展示信息。
var ModeCatalog = map[Mode]ModeInfo{
	ModeQuick:     {Mode: ModeQuick, Label: "Quick Chat", Icon: "⚡", Description: "Fast answers"},
	ModeDeep:      {Mode: ModeDeep, Label: "Deep Analysis", Icon: "🔬", Description: "Thorough reasoning"},
	ModeCreative:  {Mode: ModeCreative, Label: "Creative", Icon: "✨", Description: "Storytelling & content"},
	ModeResearch:  {Mode: ModeResearch, Label: "Research", Icon: "📚", Description: "Academic & citations"},
	ModeDeveloper: {Mode: ModeDeveloper, Label: "Developer", Icon: "💻", Description: "Code & debugging"},
}

// Conversation 是共享同一模式的一组有序消息。
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LastMessage 返回最后一条消息；会话为空时 ok 为 false。
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// ConversationSet 是一个会话的全部会话列表，最新创建的排在最前。
type ConversationSet struct {
	Conversations []Conversation `json:"conversations"`
	ActiveID      string         `json:"activeId"`
}

// Active 返回当前活跃会话；ActiveID 无法解析时回退到第一个会话。
func (s ConversationSet) Active() (Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == s.ActiveID {
			return c, true
		}
	}
	if len(s.Conversations) > 0 {
		return s.Conversations[0], true
	}
	return Conversation{}, false
}

// Find 按 ID 查找会话。
func (s ConversationSet) Find(id string) (Conversation, bool) {
	for _, c := range s.Conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// ChatMessage 代表发往模型网关的一条角色消息。
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
