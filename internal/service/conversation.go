package service

import (
	"context"
	"log/slog"

	"sudooom.im.chat/internal/model"
)

// ConversationStore 会话持久化接口
// 进程装配时注入缓存装饰后的实现；MemberIDs 约定直达底层存储
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

// ConversationManager 会话服务
type ConversationManager struct {
	store  ConversationStore
	logger *slog.Logger
}

// NewConversationManager 创建会话服务
func NewConversationManager(store ConversationStore) *ConversationManager {
	return &ConversationManager{
		store:  store,
		logger: slog.Default(),
	}
}

// GetConversation 查询会话，不存在时返回 (nil, nil)
func (m *ConversationManager) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return m.store.GetConversation(ctx, id)
}

// GetUserConversation 查询成员的已读状态，不存在时返回 (nil, nil)
func (m *ConversationManager) GetUserConversation(ctx context.Context, id string, member int64) (*model.UserConversation, error) {
	return m.store.GetUserConversation(ctx, id, member)
}

// GetConversations 按最近活跃倒序分页列出成员的会话
func (m *ConversationManager) GetConversations(ctx context.Context, member int64, after string, pageSize int) (*model.ConversationPage, error) {
	return m.store.ListConversations(ctx, member, after, pageSize)
}

// AddMembers 将成员并入会话，幂等
func (m *ConversationManager) AddMembers(ctx context.Context, id string, members []int64) error {
	m.logger.Debug("Adding members", "conversation", id, "members", members)
	return m.store.AddMembers(ctx, id, members)
}

// RemoveMembers 将成员移出会话，幂等
func (m *ConversationManager) RemoveMembers(ctx context.Context, id string, members []int64) error {
	m.logger.Debug("Removing members", "conversation", id, "members", members)
	return m.store.RemoveMembers(ctx, id, members)
}

// UpdateLastSeen 推进成员已读指针，只向前
func (m *ConversationManager) UpdateLastSeen(ctx context.Context, id string, member int64, eventID string) error {
	return m.store.UpdateLastSeen(ctx, id, member, eventID)
}

// UpdateLastMessage 消息写入成功后更新最后消息指针
func (m *ConversationManager) UpdateLastMessage(ctx context.Context, id string, eventID string) error {
	return m.store.UpdateLastMessage(ctx, id, eventID)
}

// MemberIDs 读取会话的持久化成员集合，会话不存在时返回 (nil, nil)
func (m *ConversationManager) MemberIDs(ctx context.Context, id string) ([]int64, error) {
	return m.store.MemberIDs(ctx, id)
}

// CheckAccess 会话访问检查
// 作为写操作的授权依据，必须读持久化的成员集合，不经过缓存
func (m *ConversationManager) CheckAccess(ctx context.Context, id string, member int64) (bool, error) {
	members, err := m.store.MemberIDs(ctx, id)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == member {
			return true, nil
		}
	}
	return false, nil
}
