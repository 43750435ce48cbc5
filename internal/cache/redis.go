package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"sudooom.im.chat/internal/metrics"
)

const (
	// conversationKeyPrefix 会话缓存 Key 前缀
	conversationKeyPrefix = "im:chat:conv:"
)

// ConversationKey 构建会话缓存 Key
func ConversationKey(conversation string) string {
	return conversationKeyPrefix + conversation
}

// UserConversationKey 构建成员已读状态缓存 Key
func UserConversationKey(conversation string, member int64) string {
	return fmt.Sprintf("%s%s:%d", conversationKeyPrefix, conversation, member)
}

// Cache Redis KV 缓存封装，值为 JSON，写入带 TTL
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// New 创建缓存
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// GetJSON 读取并反序列化，返回是否命中
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMisses.Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// 缓存内容损坏按未命中处理，删除后走底层存储
		c.logger.Warn("Dropping corrupt cache entry", "key", key, "error", err)
		c.client.Del(ctx, key)
		metrics.CacheMisses.Inc()
		return false, nil
	}

	metrics.CacheHits.Inc()
	return true, nil
}

// SetJSON 序列化后写入，带 TTL
func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Del 删除缓存项
func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
