package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/model"
	"ahsan-gpt-go/internal/repository"
	"ahsan-gpt-go/pkg/log"
	"ahsan-gpt-go/pkg/ratelimit"

	"golang.org/x/sync/singleflight"
)

// SessionFactory 为一个已登录用户创建会话核心。
type SessionFactory func(ctx context.Context, userID uint) ConversationService

// NewSessionFactory 根据配置创建 SessionFactory。每个用户拥有独立的限流器和持久化实现。
func NewSessionFactory(cfg config.Config, gateway ModelGateway, persisters repository.PersisterFactory) SessionFactory {
	window := time.Duration(cfg.RateLimit.WindowMs) * time.Millisecond
	mode, err := model.ParseMode(cfg.Chat.DefaultMode)
	if err != nil {
		log.Warnw("默认模式无效，回退到 quick", "mode", cfg.Chat.DefaultMode)
		mode = model.ModeQuick
	}
	return func(ctx context.Context, userID uint) ConversationService {
		limiter := ratelimit.New(cfg.RateLimit.MaxRequests, window, nil)
		return NewConversationService(ctx, limiter, gateway, persisters(userID), WithDefaultMode(mode))
	}
}

// SessionRegistry 懒加载并缓存每个用户的会话核心，登出时释放。
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[uint]ConversationService
	factory  SessionFactory
	creating singleflight.Group
}

// NewSessionRegistry 创建一个 SessionRegistry。
func NewSessionRegistry(factory SessionFactory) *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uint]ConversationService), factory: factory}
}

// Get 返回用户的会话核心，不存在时创建。
// 创建过程（包括从持久化恢复）不持有注册表锁，同一用户的并发创建只执行一次。
func (r *SessionRegistry) Get(ctx context.Context, userID uint) ConversationService {
	if s, ok := r.lookup(userID); ok {
		return s
	}
	v, _, _ := r.creating.Do(strconv.FormatUint(uint64(userID), 10), func() (interface{}, error) {
		if s, ok := r.lookup(userID); ok {
			return s, nil
		}
		s := r.factory(ctx, userID)
		r.mu.Lock()
		r.sessions[userID] = s
		r.mu.Unlock()
		log.Infow("创建用户会话", "userId", userID)
		return s, nil
	})
	return v.(ConversationService)
}

func (r *SessionRegistry) lookup(userID uint) (ConversationService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Drop 释放用户的会话核心。已持久化的会话在下次 Get 时恢复。
func (r *SessionRegistry) Drop(userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Len 返回当前缓存的会话数。
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
