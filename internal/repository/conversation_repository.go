// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ahsan-gpt-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ConversationPersister 是会话集合的可插拔持久化协作者。
// Load 在没有保存过数据时返回 nil, nil。
type ConversationPersister interface {
	Load(ctx context.Context) (*model.ConversationSet, error)
	Save(ctx context.Context, set model.ConversationSet) error
}

// memoryPersister 只在进程内保留最后一次保存的快照，进程退出即丢失。
type memoryPersister struct {
	mu  sync.Mutex
	set *model.ConversationSet
}

// NewMemoryPersister 创建默认的内存持久化实现。
func NewMemoryPersister() ConversationPersister {
	return &memoryPersister{}
}

func (p *memoryPersister) Load(ctx context.Context) (*model.ConversationSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set == nil {
		return nil, nil
	}
	cp := cloneSet(*p.set)
	return &cp, nil
}

func (p *memoryPersister) Save(ctx context.Context, set model.ConversationSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := cloneSet(set)
	p.set = &cp
	return nil
}

// cloneSet 复制会话列表和每个会话的消息列表，使保存的集合与调用方互不影响。
func cloneSet(set model.ConversationSet) model.ConversationSet {
	convs := make([]model.Conversation, len(set.Conversations))
	for i, c := range set.Conversations {
		c.Messages = append([]model.Message(nil), c.Messages...)
		convs[i] = c
	}
	set.Conversations = convs
	return set
}

type redisConversationPersister struct {
	redisClient *redis.Client
	userID      uint
	ttl         time.Duration
}

// NewRedisConversationPersister 创建一个把用户会话集合以 JSON 形式存入 Redis 的实现。
func NewRedisConversationPersister(redisClient *redis.Client, userID uint, ttl time.Duration) ConversationPersister {
	return &redisConversationPersister{redisClient: redisClient, userID: userID, ttl: ttl}
}

func conversationSetKey(userID uint) string {
	return fmt.Sprintf("user:%d:conversations", userID)
}

// Load 从 Redis 读取会话集合。
func (r *redisConversationPersister) Load(ctx context.Context) (*model.ConversationSet, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationSetKey(r.userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation set: %w", err)
	}
	var set model.ConversationSet
	if err := json.Unmarshal([]byte(jsonData), &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation set: %w", err)
	}
	return &set, nil
}

// Save 覆盖写入会话集合并刷新过期时间。
func (r *redisConversationPersister) Save(ctx context.Context, set model.ConversationSet) error {
	jsonData, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation set: %w", err)
	}
	if err := r.redisClient.Set(ctx, conversationSetKey(r.userID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set conversation set: %w", err)
	}
	return nil
}

// PersisterFactory 为指定用户创建持久化实现。
type PersisterFactory func(userID uint) ConversationPersister

// MemoryPersisterFactory 为每个用户创建独立的内存实现。
func MemoryPersisterFactory() PersisterFactory {
	return func(uint) ConversationPersister { return NewMemoryPersister() }
}

// RedisPersisterFactory 为每个用户创建 Redis 实现。
func RedisPersisterFactory(redisClient *redis.Client, ttl time.Duration) PersisterFactory {
	return func(userID uint) ConversationPersister {
		return NewRedisConversationPersister(redisClient, userID, ttl)
	}
}
