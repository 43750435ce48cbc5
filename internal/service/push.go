package service

import (
	"context"
	"log/slog"

	"sudooom.im.chat/internal/chatkey"
	"sudooom.im.chat/internal/model"
)

// PushSubscriptionStore 推送订阅持久化接口
type PushSubscriptionStore interface {
	Subscribe(ctx context.Context, conversation string, members []int64) []model.BatchResult
	Unsubscribe(ctx context.Context, conversation string, members []int64) []model.BatchResult
	GetSubscribers(ctx context.Context, conversation string) ([]int64, error)
}

// PushSubscriptionManager 推送订阅服务
//
// 单聊会话的订阅关系从会话 ID 本身派生：两个参与者恒为接收者，
// 不落库，subscribe/unsubscribe 为空操作（单聊无法退出）。
// 群聊会话的订阅集合持久化，批量写入容忍单项失败。
type PushSubscriptionManager struct {
	store  PushSubscriptionStore
	logger *slog.Logger
}

// NewPushSubscriptionManager 创建推送订阅服务
func NewPushSubscriptionManager(store PushSubscriptionStore) *PushSubscriptionManager {
	return &PushSubscriptionManager{
		store:  store,
		logger: slog.Default(),
	}
}

// Subscribe 批量登记推送订阅，返回每个成员的写入结果
func (m *PushSubscriptionManager) Subscribe(ctx context.Context, conversation string, members []int64) []model.BatchResult {
	m.logger.Debug("Push subscribe", "conversation", conversation, "members", members)

	if chatkey.IsDirect(conversation) {
		return nil
	}

	results := m.store.Subscribe(ctx, conversation, members)
	if failed := model.FailedMembers(results); len(failed) > 0 {
		m.logger.Warn("Push subscribe partially failed", "conversation", conversation, "failed", failed)
	}
	return results
}

// Unsubscribe 批量注销推送订阅，返回每个成员的写入结果
func (m *PushSubscriptionManager) Unsubscribe(ctx context.Context, conversation string, members []int64) []model.BatchResult {
	m.logger.Debug("Push unsubscribe", "conversation", conversation, "members", members)

	if chatkey.IsDirect(conversation) {
		return nil
	}

	results := m.store.Unsubscribe(ctx, conversation, members)
	if failed := model.FailedMembers(results); len(failed) > 0 {
		m.logger.Warn("Push unsubscribe partially failed", "conversation", conversation, "failed", failed)
	}
	return results
}

// GetSubscribers 查询会话的推送接收者
// 单聊直接从会话 ID 解出两个参与者，不访问存储
func (m *PushSubscriptionManager) GetSubscribers(ctx context.Context, conversation string) ([]int64, error) {
	if chatkey.IsDirect(conversation) {
		a, b, ok := chatkey.ParseDirect(conversation)
		if !ok {
			m.logger.Warn("Malformed direct conversation key", "conversation", conversation)
			return nil, nil
		}
		return []int64{a, b}, nil
	}

	return m.store.GetSubscribers(ctx, conversation)
}
