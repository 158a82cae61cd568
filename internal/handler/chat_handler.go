package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/middleware"
	"ahsan-gpt-go/internal/service"
	"ahsan-gpt-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// wsFrame 是服务端推送给客户端的消息。
type wsFrame struct {
	Type    string         `json:"type"` // snapshot | event | result | error
	Event   *service.Event `json:"event,omitempty"`
	Data    interface{}    `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

const sinkBuffer = 64

// wsSink 串行化对连接的写入。关闭后的推送会被丢弃。
type wsSink struct {
	mu     sync.Mutex
	out    chan wsFrame
	closed bool
}

func newWSSink() *wsSink {
	return &wsSink{out: make(chan wsFrame, sinkBuffer)}
}

func (s *wsSink) push(f wsFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- f:
	default:
		log.Warnw("WebSocket 发送队列已满，丢弃消息", "type", f.Type)
	}
}

func (s *wsSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// ChatHandler 负责处理 WebSocket 聊天连接：推送会话事件并接收用户消息。
type ChatHandler struct {
	resolver middleware.UserResolver
	sessions *service.SessionRegistry
	upload   config.UploadConfig
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(resolver middleware.UserResolver, sessions *service.SessionRegistry, upload config.UploadConfig) *ChatHandler {
	return &ChatHandler{resolver: resolver, sessions: sessions, upload: upload}
}

// Handle 处理一个传入的 WebSocket 连接。token 通过路径传入，因为浏览器无法为 WebSocket 设置请求头。
func (h *ChatHandler) Handle(c *gin.Context) {
	user, err := h.resolver.CurrentUser(c.Request.Context(), c.Param("token"))
	if err != nil {
		user = nil
	}
	switch service.Decide(user) {
	case service.AccessLogin:
		respond(c, http.StatusUnauthorized, "无效的 token", gin.H{"redirect": middleware.LoginRedirect})
		return
	case service.AccessVerify:
		respond(c, http.StatusForbidden, "请先验证邮箱", gin.H{"redirect": middleware.VerifyRedirect})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infow("WebSocket 连接已建立", "userId", user.ID)

	store := h.sessions.Get(c.Request.Context(), user.ID)
	sink := newWSSink()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for f := range sink.out {
			if err := conn.WriteJSON(f); err != nil {
				log.Warnf("WebSocket 写入失败: %v", err)
				return
			}
		}
	}()

	sink.push(wsFrame{Type: "snapshot", Data: viewOf(store)})
	unsubscribe := store.Subscribe(func(e service.Event) {
		ev := e
		sink.push(wsFrame{Type: "event", Event: &ev})
	})
	defer func() {
		unsubscribe()
		sink.close()
		<-writerDone
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		var req MessageRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			sink.push(wsFrame{Type: "error", Message: "invalid message payload"})
			continue
		}
		if err := validateMessage(req, h.upload); err != nil {
			sink.push(wsFrame{Type: "error", Message: err.Error()})
			continue
		}

		result, err := store.SendMessage(c.Request.Context(), req.Content, req.Attachments)
		if err != nil {
			sink.push(wsFrame{Type: "error", Message: err.Error()})
			continue
		}
		sink.push(wsFrame{Type: "result", Data: result})
	}
}
