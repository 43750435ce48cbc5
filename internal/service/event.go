package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"sudooom.im.chat/internal/chatkey"
	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
)

// EventStore 事件日志持久化接口
type EventStore interface {
	Append(ctx context.Context, channel string, input model.EventInput) (*model.Event, error)
	Read(ctx context.Context, channel string, opts model.ReadOptions) (*model.EventPage, error)
	MarkDelivered(ctx context.Context, channel string, eventIDs []string) error
}

// EventPublisher 在线订阅者的事件发布接口（共享 pub/sub）
type EventPublisher interface {
	PublishEvent(topic string, event *model.WebsocketEvent) error
}

// PushDispatcher 推送分发接口，尽力而为
type PushDispatcher interface {
	Enqueue(msg *model.PushMessage)
}

// PostInput 事件投递输入
type PostInput struct {
	Triggers      []string // 目标频道，第一个为主频道（会话）
	SenderID      int64
	Payload       json.RawMessage
	Push          *model.PushNotification // 为空则不推送
	TTL           time.Duration
	TrackDelivery bool
}

// EventManager 事件投递服务
//
// 把一个载荷投递到一个或多个频道：逐频道落库（硬错误向调用方传播，
// 由调用方整体重试），然后对在线订阅者发布、对离线接收者推送。
// 发布和推送都是旁路，失败只记录日志，事件的持久性只取决于落库。
type EventManager struct {
	store      EventStore
	publisher  EventPublisher
	pushSubs   *PushSubscriptionManager
	dispatcher PushDispatcher
	logger     *slog.Logger
}

// NewEventManager 创建事件投递服务
func NewEventManager(store EventStore, publisher EventPublisher, pushSubs *PushSubscriptionManager, dispatcher PushDispatcher) *EventManager {
	return &EventManager{
		store:      store,
		publisher:  publisher,
		pushSubs:   pushSubs,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
}

// Post 投递载荷，每个目标频道产生一个事件（共享载荷、各自的 ID）
func (m *EventManager) Post(ctx context.Context, input PostInput) ([]*model.Event, error) {
	events := make([]*model.Event, 0, len(input.Triggers))

	for _, trigger := range input.Triggers {
		ev, err := m.store.Append(ctx, trigger, model.EventInput{
			SenderID:      input.SenderID,
			Payload:       input.Payload,
			TTL:           input.TTL,
			TrackDelivery: input.TrackDelivery,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		metrics.EventsAppended.WithLabelValues(channelKind(trigger)).Inc()
	}

	// 在线扇出，尽力而为
	for _, ev := range events {
		wsEvent := &model.WebsocketEvent{
			ID:            ev.ID,
			EventName:     ev.Channel,
			SenderID:      ev.SenderID,
			Payload:       ev.Payload,
			TrackDelivery: ev.TrackDelivery,
			Delivered:     ev.Delivered,
		}
		if err := m.publisher.PublishEvent(ev.Channel, wsEvent); err != nil {
			m.logger.Warn("Live publish failed", "channel", ev.Channel, "eventId", ev.ID, "error", err)
		}
	}

	// 离线推送，只对主频道解析接收者，排除发送者，每人至多一条
	if input.Push != nil && len(events) > 0 {
		m.dispatchPush(ctx, input.Triggers[0], events[0], input.Push)
	}

	return events, nil
}

func (m *EventManager) dispatchPush(ctx context.Context, conversation string, ev *model.Event, push *model.PushNotification) {
	subscribers, err := m.pushSubs.GetSubscribers(ctx, conversation)
	if err != nil {
		m.logger.Warn("Failed to resolve push recipients", "conversation", conversation, "error", err)
		return
	}

	seen := make(map[int64]bool, len(subscribers))
	for _, recipient := range subscribers {
		if recipient == push.Sender || seen[recipient] {
			continue
		}
		seen[recipient] = true

		m.dispatcher.Enqueue(&model.PushMessage{
			Recipient:      recipient,
			ConversationID: conversation,
			EventID:        ev.ID,
			Title:          push.Title,
			Body:           push.Body,
			Reason:         push.Reason,
			TTL:            push.TTL,
		})
	}
}

// Events 分页读取频道事件
func (m *EventManager) Events(ctx context.Context, channel string, opts model.ReadOptions) (*model.EventPage, error) {
	return m.store.Read(ctx, channel, opts)
}

// MarkDelivered 读回执推进后固化投递标记
func (m *EventManager) MarkDelivered(ctx context.Context, channel string, eventIDs []string) error {
	return m.store.MarkDelivered(ctx, channel, eventIDs)
}

func channelKind(channel string) string {
	switch {
	case chatkey.IsDirect(channel):
		return "direct"
	case len(channel) >= len(chatkey.GroupPrefix) && channel[:len(chatkey.GroupPrefix)] == chatkey.GroupPrefix:
		return "group"
	default:
		return "updates"
	}
}
