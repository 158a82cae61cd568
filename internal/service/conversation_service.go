package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ahsan-gpt-go/internal/model"
	"ahsan-gpt-go/internal/repository"
	"ahsan-gpt-go/pkg/log"
	"ahsan-gpt-go/pkg/ratelimit"

	"github.com/google/uuid"
)

var (
	// ErrEmptyMessage 表示内容为空且没有附件，调用不会修改任何状态。
	ErrEmptyMessage = errors.New("message is empty")
	// ErrConversationBusy 表示该会话已有一条消息在等待回复。
	ErrConversationBusy = errors.New("a reply is already pending for this conversation")
)

// EventType 标识会话状态变化的类型。
type EventType string

const (
	EventConversationCreated  EventType = "conversation_created"
	EventConversationSelected EventType = "conversation_selected"
	EventConversationDeleted  EventType = "conversation_deleted"
	EventMessageAppended      EventType = "message_appended"
	EventLoadingChanged       EventType = "loading_changed"
)

// Event 是推送给观察者的状态变化，携带的数据都是不可变快照。
type Event struct {
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversationId,omitempty"`
	Message        *model.Message `json:"message,omitempty"`
	Loading        bool           `json:"loading"`
}

// Listener 接收会话事件。Listener 在分发期间不能同步调用会修改状态的方法。
type Listener func(Event)

// SendResult 描述一次 SendMessage 的结果。
type SendResult struct {
	ConversationID string         `json:"conversationId"`
	UserMessage    *model.Message `json:"userMessage,omitempty"`
	Reply          model.Message  `json:"reply"`
	RateLimited    bool           `json:"rateLimited"`
	Failed         bool           `json:"failed"`
	Suggestions    []string       `json:"suggestions,omitempty"`
}

// ConversationService 是会话集合的唯一所有者和修改者。
// 所有修改都在锁内完成并生成新的快照，只有模型调用在锁外进行。
type ConversationService interface {
	Snapshot() model.ConversationSet
	ActiveConversation() model.Conversation
	NewConversation(mode model.Mode) model.Conversation
	SelectConversation(id string) bool
	DeleteConversation(id string) bool
	SetMode(mode model.Mode) error
	Mode() model.Mode
	IsLoading() bool
	SendMessage(ctx context.Context, content string, attachments []model.FileRef) (*SendResult, error)
	Suggestions() []string
	Subscribe(l Listener) (unsubscribe func())
}

// ConversationOption 配置 conversationService。
type ConversationOption func(*conversationService)

// WithClock 替换时间来源。
func WithClock(clock ratelimit.Clock) ConversationOption {
	return func(s *conversationService) { s.clock = clock }
}

// WithIDGenerator 替换 ID 生成函数。
func WithIDGenerator(newID func() string) ConversationOption {
	return func(s *conversationService) { s.newID = newID }
}

// WithDefaultMode 设置初始模式。
func WithDefaultMode(mode model.Mode) ConversationOption {
	return func(s *conversationService) { s.mode = mode }
}

// WithSaveTimeout 设置单次保存会话集合的超时时间。
func WithSaveTimeout(d time.Duration) ConversationOption {
	return func(s *conversationService) { s.saveTimeout = d }
}

// defaultSaveTimeout 限制一次保存的耗时，避免存储卡住时阻塞发送流程。
const defaultSaveTimeout = 3 * time.Second

type conversationService struct {
	limiter   *ratelimit.Limiter
	gateway   ModelGateway
	persister repository.ConversationPersister
	clock     ratelimit.Clock
	newID     func() string

	mu       sync.Mutex
	set      model.ConversationSet
	mode     model.Mode
	busy     map[string]bool
	inflight int
	version  uint64

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextLID    int

	saveMu       sync.Mutex
	savedVersion uint64
	saveTimeout  time.Duration
}

// NewConversationService 创建一个会话核心，并尝试从 persister 恢复之前的会话集合。
func NewConversationService(ctx context.Context, limiter *ratelimit.Limiter, gateway ModelGateway, persister repository.ConversationPersister, opts ...ConversationOption) ConversationService {
	s := &conversationService{
		limiter:     limiter,
		gateway:     gateway,
		persister:   persister,
		clock:       ratelimit.SystemClock,
		newID:       uuid.NewString,
		mode:        model.ModeQuick,
		busy:        make(map[string]bool),
		listeners:   make(map[int]Listener),
		saveTimeout: defaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister == nil {
		s.persister = repository.NewMemoryPersister()
	}

	loaded, err := s.persister.Load(ctx)
	if err != nil {
		log.Warnw("加载会话集合失败，使用新的会话", "error", err)
	}
	if loaded != nil && len(loaded.Conversations) > 0 {
		s.set = *loaded
		if _, ok := s.set.Find(s.set.ActiveID); !ok {
			s.set.ActiveID = s.set.Conversations[0].ID
		}
		return s
	}

	conv := s.createConversation(s.mode)
	s.set = model.ConversationSet{Conversations: []model.Conversation{conv}, ActiveID: conv.ID}
	return s
}

func (s *conversationService) createConversation(mode model.Mode) model.Conversation {
	now := s.clock.Now()
	return model.Conversation{
		ID:        s.newID(),
		Title:     model.DefaultTitle,
		Messages:  []model.Message{},
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *conversationService) newMessage(role model.Role, content string, attachments []model.FileRef) model.Message {
	var files []model.FileRef
	if len(attachments) > 0 {
		files = make([]model.FileRef, len(attachments))
		copy(files, attachments)
	}
	return model.Message{
		ID:          s.newID(),
		Role:        role,
		Content:     content,
		Timestamp:   s.clock.Now(),
		Attachments: files,
	}
}

// Snapshot 返回当前会话集合的副本。
func (s *conversationService) Snapshot() model.ConversationSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *conversationService) snapshotLocked() model.ConversationSet {
	convs := make([]model.Conversation, len(s.set.Conversations))
	copy(convs, s.set.Conversations)
	return model.ConversationSet{Conversations: convs, ActiveID: s.set.ActiveID}
}

// ActiveConversation 返回当前活跃会话。
func (s *conversationService) ActiveConversation() model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *conversationService) activeLocked() model.Conversation {
	active, _ := s.set.Active()
	return active
}

// NewConversation 创建会话、放到列表最前并设为活跃。mode 为空时使用当前模式。
func (s *conversationService) NewConversation(mode model.Mode) model.Conversation {
	s.mu.Lock()
	if mode == "" {
		mode = s.mode
	}
	conv := s.createConversation(mode)
	s.set.Conversations = append([]model.Conversation{conv}, s.set.Conversations...)
	s.set.ActiveID = conv.ID
	snap, v := s.bumpLocked()
	s.mu.Unlock()

	s.publish(snap, v, Event{Type: EventConversationCreated, ConversationID: conv.ID})
	return conv
}

// SelectConversation 切换活跃会话，id 不存在时忽略。
func (s *conversationService) SelectConversation(id string) bool {
	s.mu.Lock()
	if _, ok := s.set.Find(id); !ok {
		s.mu.Unlock()
		return false
	}
	s.set.ActiveID = id
	snap, v := s.bumpLocked()
	s.mu.Unlock()

	s.publish(snap, v, Event{Type: EventConversationSelected, ConversationID: id})
	return true
}

// DeleteConversation 删除会话。删除活跃会话时新的第一个会话成为活跃会话；
// 删空后立即创建一个新会话，集合永远不为空。
func (s *conversationService) DeleteConversation(id string) bool {
	s.mu.Lock()
	remaining := make([]model.Conversation, 0, len(s.set.Conversations))
	for _, c := range s.set.Conversations {
		if c.ID != id {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == len(s.set.Conversations) {
		s.mu.Unlock()
		return false
	}

	events := []Event{{Type: EventConversationDeleted, ConversationID: id}}
	switch {
	case len(remaining) == 0:
		conv := s.createConversation(s.mode)
		remaining = append(remaining, conv)
		s.set.ActiveID = conv.ID
		events = append(events, Event{Type: EventConversationCreated, ConversationID: conv.ID})
	case id == s.set.ActiveID:
		s.set.ActiveID = remaining[0].ID
		events = append(events, Event{Type: EventConversationSelected, ConversationID: remaining[0].ID})
	}
	s.set.Conversations = remaining
	snap, v := s.bumpLocked()
	s.mu.Unlock()

	s.publish(snap, v, events...)
	return true
}

// SetMode 只影响之后创建的会话。
func (s *conversationService) SetMode(mode model.Mode) error {
	if _, err := model.ParseMode(string(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// Mode 返回当前模式。
func (s *conversationService) Mode() model.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// IsLoading 报告是否有消息在等待模型回复。
func (s *conversationService) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Suggestions 返回针对活跃会话最后一条助手消息的快捷回复；不适用时返回 nil。
func (s *conversationService) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.activeLocked()
	if s.busy[active.ID] {
		return nil
	}
	last, ok := active.LastMessage()
	if !ok || last.Role != model.RoleAssistant {
		return nil
	}
	return SuggestReplies(last.Content)
}

// SendMessage 是主要的编排流程：准入检查、追加用户消息、调用模型、追加回复。
// 模型调用的所有失败都转换为一条助手错误消息，不会作为 error 返回。
func (s *conversationService) SendMessage(ctx context.Context, content string, attachments []model.FileRef) (*SendResult, error) {
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	active := s.activeLocked()
	convID := active.ID
	if s.busy[convID] {
		s.mu.Unlock()
		return nil, ErrConversationBusy
	}

	if !s.limiter.CanMakeRequest() {
		resetAt := s.limiter.ResetTime()
		note := s.newMessage(model.RoleAssistant,
			fmt.Sprintf("Rate limit exceeded. Please wait until %s before sending more messages.", resetAt.UTC().Format("15:04:05 MST")), nil)
		s.appendLocked(convID, note)
		snap, v := s.bumpLocked()
		s.mu.Unlock()

		log.Infow("请求被限流", "conversationId", convID, "resetAt", resetAt)
		s.publish(snap, v, Event{Type: EventMessageAppended, ConversationID: convID, Message: &note})
		return &SendResult{ConversationID: convID, Reply: note, RateLimited: true}, nil
	}

	userMsg := s.newMessage(model.RoleUser, content, attachments)
	history := make([]model.ChatMessage, 0, len(active.Messages)+1)
	for _, m := range active.Messages {
		history = append(history, model.ChatMessage{Role: m.Role, Content: m.Content})
	}
	history = append(history, model.ChatMessage{Role: model.RoleUser, Content: content})

	s.appendLocked(convID, userMsg)
	s.busy[convID] = true
	s.inflight++
	s.limiter.RecordRequest()
	snap, v := s.bumpLocked()
	s.mu.Unlock()

	defer s.finishSend(convID)
	s.publish(snap, v,
		Event{Type: EventMessageAppended, ConversationID: convID, Message: &userMsg},
		Event{Type: EventLoadingChanged, ConversationID: convID, Loading: true},
	)

	result := &SendResult{ConversationID: convID, UserMessage: &userMsg}
	text, err := s.complete(ctx, history)
	if err != nil {
		result.Failed = true
		text = "Error: " + describeFailure(err)
		log.Warnw("模型调用失败", "conversationId", convID, "error", err)
	}
	reply := s.newMessage(model.RoleAssistant, text, nil)
	result.Reply = reply
	result.Suggestions = SuggestReplies(reply.Content)

	s.mu.Lock()
	if !s.appendLocked(convID, reply) {
		s.mu.Unlock()
		log.Infow("会话已被删除，丢弃回复", "conversationId", convID)
		return result, nil
	}
	snap, v = s.bumpLocked()
	s.mu.Unlock()

	s.publish(snap, v, Event{Type: EventMessageAppended, ConversationID: convID, Message: &reply})
	return result, nil
}

// complete 调用模型网关，并把网关中的 panic 转换为错误。
func (s *conversationService) complete(ctx context.Context, history []model.ChatMessage) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("模型网关 panic: %v", r)
			err = fmt.Errorf("model gateway panic: %v", r)
		}
	}()
	return s.gateway.Complete(ctx, history)
}

func describeFailure(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.UserMessage()
	}
	return "Failed to get response"
}

func (s *conversationService) finishSend(convID string) {
	s.mu.Lock()
	delete(s.busy, convID)
	s.inflight--
	loading := s.inflight > 0
	s.mu.Unlock()

	s.emit(Event{Type: EventLoadingChanged, ConversationID: convID, Loading: loading})
}

// appendLocked 以写时复制的方式向会话追加一条消息。会话不存在时返回 false。
func (s *conversationService) appendLocked(convID string, msg model.Message) bool {
	for i, c := range s.set.Conversations {
		if c.ID != convID {
			continue
		}
		msgs := make([]model.Message, len(c.Messages), len(c.Messages)+1)
		copy(msgs, c.Messages)
		updated := c
		if msg.Role == model.RoleUser && len(c.Messages) == 0 && msg.Content != "" {
			updated.Title = deriveTitle(msg.Content)
		}
		updated.Messages = append(msgs, msg)
		updated.UpdatedAt = msg.Timestamp
		s.set.Conversations[i] = updated
		return true
	}
	return false
}

// deriveTitle 截取消息的前 MaxTitleChars 个字符作为标题，不做任何修剪。
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > model.MaxTitleChars {
		runes = runes[:model.MaxTitleChars]
	}
	return string(runes)
}

func (s *conversationService) bumpLocked() (model.ConversationSet, uint64) {
	s.version++
	return s.snapshotLocked(), s.version
}

// Subscribe 注册一个观察者，返回取消函数。
func (s *conversationService) Subscribe(l Listener) func() {
	s.listenerMu.Lock()
	id := s.nextLID
	s.nextLID++
	s.listeners[id] = l
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *conversationService) emit(events ...Event) {
	s.listenerMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.Unlock()

	for _, e := range events {
		for _, l := range listeners {
			l(e)
		}
	}
}

// publish 先通知观察者再保存快照。保存失败只记录日志。
func (s *conversationService) publish(snap model.ConversationSet, version uint64, events ...Event) {
	s.emit(events...)

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if version <= s.savedVersion {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.persister.Save(ctx, snap); err != nil {
		log.Warnw("保存会话集合失败", "error", err)
		return
	}
	s.savedVersion = version
}
