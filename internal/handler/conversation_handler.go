package handler

import (
	"errors"
	"net/http"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/middleware"
	"ahsan-gpt-go/internal/model"
	"ahsan-gpt-go/internal/service"
	"ahsan-gpt-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与会话核心相关的 API 请求。
type ConversationHandler struct {
	sessions *service.SessionRegistry
	upload   config.UploadConfig
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(sessions *service.SessionRegistry, upload config.UploadConfig) *ConversationHandler {
	return &ConversationHandler{sessions: sessions, upload: upload}
}

func (h *ConversationHandler) store(c *gin.Context) service.ConversationService {
	return h.sessions.Get(c.Request.Context(), middleware.CurrentUser(c).ID)
}

// conversationView 是会话列表接口返回的完整状态。
type conversationView struct {
	Conversations      []model.Conversation `json:"conversations"`
	ActiveID           string               `json:"activeId"`
	Mode               model.Mode           `json:"mode"`
	Loading            bool                 `json:"loading"`
	Suggestions        []string             `json:"suggestions"`
	Placeholder        string               `json:"placeholder"`
	WelcomeSuggestions []string             `json:"welcomeSuggestions,omitempty"`
}

func viewOf(store service.ConversationService) conversationView {
	set := store.Snapshot()
	active, _ := set.Active()
	mode := store.Mode()
	view := conversationView{
		Conversations: set.Conversations,
		ActiveID:      set.ActiveID,
		Mode:          mode,
		Loading:       store.IsLoading(),
		Suggestions:   store.Suggestions(),
		Placeholder:   service.SmartPlaceholder(len(active.Messages)),
	}
	if len(active.Messages) == 0 {
		view.WelcomeSuggestions = service.WelcomeSuggestions(active.Mode)
	}
	return view
}

// List 返回当前用户的全部会话状态。
func (h *ConversationHandler) List(c *gin.Context) {
	ok(c, viewOf(h.store(c)))
}

// ModeRequest 携带一个模式。
type ModeRequest struct {
	Mode string `json:"mode"`
}

// Create 新建会话并设为活跃会话。mode 为空时使用当前模式。
func (h *ConversationHandler) Create(c *gin.Context) {
	var req ModeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
	}
	var mode model.Mode
	if req.Mode != "" {
		m, err := model.ParseMode(req.Mode)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		mode = m
	}
	conv := h.store(c).NewConversation(mode)
	respond(c, http.StatusCreated, "success", conv)
}

// SelectRequest 携带要切换到的会话 ID。
type SelectRequest struct {
	ID string `json:"id" binding:"required"`
}

// Select 切换活跃会话。
func (h *ConversationHandler) Select(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id is required")
		return
	}
	store := h.store(c)
	if !store.SelectConversation(req.ID) {
		respond(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	ok(c, viewOf(store))
}

// Delete 删除一个会话。集合删空后会自动补一个新会话。
func (h *ConversationHandler) Delete(c *gin.Context) {
	store := h.store(c)
	if !store.DeleteConversation(c.Param("id")) {
		respond(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	ok(c, viewOf(store))
}

// SetMode 设置之后新建会话使用的模式。
func (h *ConversationHandler) SetMode(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mode is required")
		return
	}
	mode, err := model.ParseMode(req.Mode)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	store := h.store(c)
	if err := store.SetMode(mode); err != nil {
		badRequest(c, err.Error())
		return
	}
	ok(c, gin.H{"mode": store.Mode()})
}

// Send 向活跃会话发送一条消息并等待回复。
// 被限流或模型调用失败时仍然返回 200，结果中的标志位和助手消息说明原因。
func (h *ConversationHandler) Send(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := validateMessage(req, h.upload); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.store(c).SendMessage(c.Request.Context(), req.Content, req.Attachments)
	if err != nil {
		sendFailure(c, err)
		return
	}
	ok(c, result)
}

func sendFailure(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		badRequest(c, err.Error())
	case errors.Is(err, service.ErrConversationBusy):
		respond(c, http.StatusConflict, err.Error(), nil)
	default:
		log.Errorf("SendMessage failed: %v", err)
		respond(c, http.StatusInternalServerError, "Failed to send message", nil)
	}
}

// Suggestions 返回快捷回复和输入框占位文本。
func (h *ConversationHandler) Suggestions(c *gin.Context) {
	store := h.store(c)
	active := store.ActiveConversation()
	ok(c, gin.H{
		"suggestions": store.Suggestions(),
		"placeholder": service.SmartPlaceholder(len(active.Messages)),
	})
}

// IntentRequest 携带待分类的输入。
type IntentRequest struct {
	Text string `json:"text"`
}

// Intent 返回输入的意图分类和规范化后的文本。
func (h *ConversationHandler) Intent(c *gin.Context) {
	var req IntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	ok(c, gin.H{
		"intent":   service.DetectIntent(req.Text),
		"enhanced": service.EnhancePrompt(req.Text),
	})
}

type modeView struct {
	model.ModeInfo
	WelcomeSuggestions []string `json:"welcomeSuggestions"`
}

// Modes 返回模式目录，无需登录。
func Modes(c *gin.Context) {
	views := make([]modeView, 0, len(model.Modes))
	for _, m := range model.Modes {
		views = append(views, modeView{ModeInfo: model.ModeCatalog[m], WelcomeSuggestions: service.WelcomeSuggestions(m)})
	}
	ok(c, views)
}
