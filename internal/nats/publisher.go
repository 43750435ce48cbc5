package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"sudooom.im.chat/internal/model"
)

// EventPublisher 主题事件发布器
// 把事件发到共享 pub/sub，跨进程扇出由 NATS 负责
type EventPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewEventPublisher 创建主题事件发布器
func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// PublishEvent 发布事件到主题
func (p *EventPublisher) PublishEvent(topic string, event *model.WebsocketEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "topic", topic, "error", err)
		return err
	}

	subject := TopicSubject(topic)
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish event", "topic", topic, "subject", subject, "error", err)
		return err
	}

	p.logger.Debug("Published event", "topic", topic, "eventId", event.ID)
	return nil
}

// TopicSubscriber 主题事件订阅器，实现在线扇出所需的总线接口
type TopicSubscriber struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewTopicSubscriber 创建主题事件订阅器
func NewTopicSubscriber(nc *nats.Conn) *TopicSubscriber {
	return &TopicSubscriber{
		nc:     nc,
		logger: slog.Default(),
	}
}

// SubscribeTopic 订阅主题，返回取消订阅函数
func (s *TopicSubscriber) SubscribeTopic(topic string, handler func(*model.WebsocketEvent)) (func() error, error) {
	sub, err := s.nc.Subscribe(TopicSubject(topic), func(msg *nats.Msg) {
		var event model.WebsocketEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Error("Failed to unmarshal topic event", "topic", topic, "error", err)
			return
		}
		handler(&event)
	})
	if err != nil {
		return nil, err
	}

	return sub.Unsubscribe, nil
}

// PushSender NATS 推送通道
// 把推送发布到接收者的推送 Subject，下游推送网关消费后交给厂商通道
type PushSender struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewPushSender 创建推送通道
func NewPushSender(nc *nats.Conn) *PushSender {
	return &PushSender{
		nc:     nc,
		logger: slog.Default(),
	}
}

// Send 发布单条推送，尽力而为
func (s *PushSender) Send(ctx context.Context, msg *model.PushMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.nc.Publish(PushSubject(msg.Recipient), data)
}
