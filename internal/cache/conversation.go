package cache

import (
	"context"

	"sudooom.im.chat/internal/model"
)

// ConversationStore 被装饰的底层会话存储
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetUserConversation(ctx context.Context, id string, member int64) (*model.UserConversation, error)
	ListConversations(ctx context.Context, member int64, after string, pageSize int) (*model.ConversationPage, error)
	AddMembers(ctx context.Context, id string, members []int64) error
	RemoveMembers(ctx context.Context, id string, members []int64) error
	UpdateLastSeen(ctx context.Context, id string, member int64, eventID string) error
	UpdateLastMessage(ctx context.Context, id string, eventID string) error
	MemberIDs(ctx context.Context, id string) ([]int64, error)
}

// CachedConversationStore 会话存储的缓存装饰器
//
// 读走缓存（带 TTL），写操作先同步失效对应缓存项再落库，
// 缓存只做失效不做原地更新。实现与底层存储相同的接口，
// 在进程装配时组合。
type CachedConversationStore struct {
	store ConversationStore
	cache *Cache
}

// NewCachedConversationStore 组合缓存装饰器
func NewCachedConversationStore(store ConversationStore, cache *Cache) *CachedConversationStore {
	return &CachedConversationStore{
		store: store,
		cache: cache,
	}
}

// GetConversation 缓存优先读取会话
func (s *CachedConversationStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var cached model.Conversation
	if hit, err := s.cache.GetJSON(ctx, ConversationKey(id), &cached); err == nil && hit {
		return &cached, nil
	}

	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		// 回填失败不影响读结果
		_ = s.cache.SetJSON(ctx, ConversationKey(id), conv)
	}
	return conv, nil
}

// GetUserConversation 缓存优先读取成员已读状态
func (s *CachedConversationStore) GetUserConversation(ctx context.Context, id string, member int64) (*model.UserConversation, error) {
	var cached model.UserConversation
	if hit, err := s.cache.GetJSON(ctx, UserConversationKey(id, member), &cached); err == nil && hit {
		return &cached, nil
	}

	uc, err := s.store.GetUserConversation(ctx, id, member)
	if err != nil {
		return nil, err
	}
	if uc != nil {
		_ = s.cache.SetJSON(ctx, UserConversationKey(id, member), uc)
	}
	return uc, nil
}

// ListConversations 列表读直接穿透到底层存储
func (s *CachedConversationStore) ListConversations(ctx context.Context, member int64, after string, pageSize int) (*model.ConversationPage, error) {
	return s.store.ListConversations(ctx, member, after, pageSize)
}

// AddMembers 先失效会话缓存再写入
func (s *CachedConversationStore) AddMembers(ctx context.Context, id string, members []int64) error {
	if err := s.cache.Del(ctx, mutationKeys(id, members)...); err != nil {
		return err
	}
	return s.store.AddMembers(ctx, id, members)
}

// RemoveMembers 先失效会话缓存再写入
func (s *CachedConversationStore) RemoveMembers(ctx context.Context, id string, members []int64) error {
	if err := s.cache.Del(ctx, mutationKeys(id, members)...); err != nil {
		return err
	}
	return s.store.RemoveMembers(ctx, id, members)
}

// UpdateLastSeen 先失效成员已读缓存再写入（写入只向前推进）
func (s *CachedConversationStore) UpdateLastSeen(ctx context.Context, id string, member int64, eventID string) error {
	if err := s.cache.Del(ctx, UserConversationKey(id, member)); err != nil {
		return err
	}
	return s.store.UpdateLastSeen(ctx, id, member, eventID)
}

// UpdateLastMessage 先失效会话缓存再写入
func (s *CachedConversationStore) UpdateLastMessage(ctx context.Context, id string, eventID string) error {
	if err := s.cache.Del(ctx, ConversationKey(id)); err != nil {
		return err
	}
	return s.store.UpdateLastMessage(ctx, id, eventID)
}

// MemberIDs 权限检查用的成员集合读取，绕过缓存直达底层存储
func (s *CachedConversationStore) MemberIDs(ctx context.Context, id string) ([]int64, error) {
	return s.store.MemberIDs(ctx, id)
}

func mutationKeys(id string, members []int64) []string {
	keys := make([]string, 0, len(members)+1)
	keys = append(keys, ConversationKey(id))
	for _, m := range members {
		keys = append(keys, UserConversationKey(id, m))
	}
	return keys
}
