package repository

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenBlacklist 记录已登出的 token，直到它们自然过期。
type TokenBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

type redisTokenBlacklist struct {
	redisClient *redis.Client
}

// NewRedisTokenBlacklist 创建基于 Redis 的 token 黑名单。
func NewRedisTokenBlacklist(redisClient *redis.Client) TokenBlacklist {
	return &redisTokenBlacklist{redisClient: redisClient}
}

func blacklistKey(token string) string {
	return "blacklist:" + token
}

// Add 将 token 存入黑名单，token 的剩余有效期作为 key 的过期时间。
func (b *redisTokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.redisClient.Set(ctx, blacklistKey(token), "true", ttl).Err()
}

// Contains 报告 token 是否已被拉黑。
func (b *redisTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	n, err := b.redisClient.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// memoryTokenBlacklist 在没有 Redis 时使用，只在进程内有效。
type memoryTokenBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryTokenBlacklist 创建进程内的 token 黑名单。
func NewMemoryTokenBlacklist() TokenBlacklist {
	return &memoryTokenBlacklist{entries: make(map[string]time.Time), now: time.Now}
}

func (b *memoryTokenBlacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[token] = b.now().Add(ttl)
	return nil
}

func (b *memoryTokenBlacklist) Contains(ctx context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	expiry, ok := b.entries[token]
	if !ok {
		return false, nil
	}
	if !b.now().Before(expiry) {
		delete(b.entries, token)
		return false, nil
	}
	return true, nil
}
