package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRefreshTokenStore 把刷新令牌的 jti 存入 Redis，实现跨实例的注销与轮换。
type RedisRefreshTokenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRefreshTokenStore 创建 Redis 刷新令牌存储，prefix 为空时使用默认值。
func NewRedisRefreshTokenStore(client *redis.Client, prefix string) *RedisRefreshTokenStore {
	if prefix == "" {
		prefix = "auth:refresh"
	}
	return &RedisRefreshTokenStore{client: client, prefix: prefix}
}

func (s *RedisRefreshTokenStore) key(userID, tokenID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, userID, tokenID)
}

// Save 记录刷新令牌，TTL 与令牌过期时间保持一致。
func (s *RedisRefreshTokenStore) Save(ctx context.Context, userID, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.key(userID, tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Exists 判断该刷新令牌是否仍然有效（未被注销或轮换）。
func (s *RedisRefreshTokenStore) Exists(ctx context.Context, userID, tokenID string) (bool, error) {
	count, err := s.client.Exists(ctx, s.key(userID, tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check refresh token: %w", err)
	}
	return count > 0, nil
}

// Delete 删除单个刷新令牌，令其立即失效。
func (s *RedisRefreshTokenStore) Delete(ctx context.Context, userID, tokenID string) error {
	if err := s.client.Del(ctx, s.key(userID, tokenID)).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteAll 删除用户名下所有刷新令牌，用于全端登出。
func (s *RedisRefreshTokenStore) DeleteAll(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("%s:%s:*", s.prefix, userID)
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("delete refresh tokens: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan refresh tokens: %w", err)
	}
	return nil
}

// MemoryRefreshTokenStore 为本地模式提供的进程内实现，不依赖 Redis。
type MemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]map[string]time.Time
}

// NewMemoryRefreshTokenStore 创建内存刷新令牌存储。
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{tokens: make(map[string]map[string]time.Time)}
}

func (s *MemoryRefreshTokenStore) Save(ctx context.Context, userID, tokenID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.tokens[userID]
	if !ok {
		bucket = make(map[string]time.Time)
		s.tokens[userID] = bucket
	}
	bucket[tokenID] = expiresAt
	return nil
}

func (s *MemoryRefreshTokenStore) Exists(ctx context.Context, userID, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.tokens[userID]
	if !ok {
		return false, nil
	}
	expiresAt, ok := bucket[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(bucket, tokenID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryRefreshTokenStore) Delete(ctx context.Context, userID, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bucket, ok := s.tokens[userID]; ok {
		delete(bucket, tokenID)
	}
	return nil
}

func (s *MemoryRefreshTokenStore) DeleteAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, userID)
	return nil
}
