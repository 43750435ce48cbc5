package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sudooom.im.chat/internal/eventid"
	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
)

// TopicBus 共享 pub/sub 原语，跨进程扇出由它负责
type TopicBus interface {
	SubscribeTopic(topic string, handler func(*model.WebsocketEvent)) (func() error, error)
}

// liveClient 一个在线订阅（连接断开即拆除，不持久化）
type liveClient struct {
	id     string
	ch     chan *model.WebsocketEvent
	topics []string
}

// SubscriptionManager 在线订阅管理
//
// 只做进程内的主题簿记：主题与在线订阅者的关联、按需对共享
// pub/sub 建立/释放订阅。订阅前的权限校验由调用方完成。
// 投递非阻塞，订阅者缓冲满时丢弃事件。
type SubscriptionManager struct {
	bus    TopicBus
	buffer int
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*liveClient
	topics  map[string]map[string]*liveClient // topic -> clientID -> client
	cancels map[string]func() error           // topic -> bus 取消订阅
}

// NewSubscriptionManager 创建在线订阅管理器
func NewSubscriptionManager(bus TopicBus, buffer int) *SubscriptionManager {
	if buffer <= 0 {
		buffer = 64
	}
	return &SubscriptionManager{
		bus:     bus,
		buffer:  buffer,
		logger:  slog.Default(),
		clients: make(map[string]*liveClient),
		topics:  make(map[string]map[string]*liveClient),
		cancels: make(map[string]func() error),
	}
}

// Subscribe 登记在线订阅，返回事件通道
// 同一 clientID 只能登记一次，断开后用 Unsubscribe 拆除
func (m *SubscriptionManager) Subscribe(ctx context.Context, clientID string, topics []string) (<-chan *model.WebsocketEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[clientID]; exists {
		return nil, fmt.Errorf("service: client %s already subscribed", clientID)
	}

	client := &liveClient{
		id:     clientID,
		ch:     make(chan *model.WebsocketEvent, m.buffer),
		topics: topics,
	}

	for _, topic := range topics {
		if m.topics[topic] == nil {
			// 主题第一个本地订阅者，建立共享 pub/sub 订阅
			cancel, err := m.bus.SubscribeTopic(topic, m.fanout(topic))
			if err != nil {
				m.teardownLocked(client)
				return nil, err
			}
			m.topics[topic] = make(map[string]*liveClient)
			m.cancels[topic] = cancel
		}
		m.topics[topic][clientID] = client
	}

	m.clients[clientID] = client
	metrics.LiveSubscribers.Inc()
	m.logger.Debug("Client subscribed", "clientId", clientID, "topics", topics)

	return client.ch, nil
}

// Unsubscribe 拆除在线订阅并关闭事件通道
func (m *SubscriptionManager) Unsubscribe(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, ok := m.clients[clientID]
	if !ok {
		return
	}

	delete(m.clients, clientID)
	m.teardownLocked(client)
	close(client.ch)
	metrics.LiveSubscribers.Dec()
	m.logger.Debug("Client unsubscribed", "clientId", clientID)
}

// fanout 把主题事件分发给所有本地订阅者，非阻塞
// 投递必须持有读锁：Unsubscribe 在写锁内 close 通道，
// 锁外投递会撞上已关闭的通道
func (m *SubscriptionManager) fanout(topic string) func(*model.WebsocketEvent) {
	return func(event *model.WebsocketEvent) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		for _, c := range m.topics[topic] {
			select {
			case c.ch <- event:
			default:
				// 缓冲满，丢弃，慢订阅者不能阻塞扇出
				age := int64(-1)
				if millis, ok := eventid.Timestamp(event.ID); ok {
					age = time.Now().UnixMilli() - millis
				}
				m.logger.Warn("Subscriber buffer full, dropping event",
					"clientId", c.id,
					"topic", topic,
					"eventId", event.ID,
					"ageMs", age)
			}
		}
	}
}

// teardownLocked 把订阅者从所有主题移除，主题空了就释放 bus 订阅
// 调用方必须持有写锁
func (m *SubscriptionManager) teardownLocked(client *liveClient) {
	for _, topic := range client.topics {
		subscribers, ok := m.topics[topic]
		if !ok {
			continue
		}
		delete(subscribers, client.id)

		if len(subscribers) == 0 {
			delete(m.topics, topic)
			if cancel, ok := m.cancels[topic]; ok {
				delete(m.cancels, topic)
				if err := cancel(); err != nil {
					m.logger.Warn("Failed to cancel bus subscription", "topic", topic, "error", err)
				}
			}
		}
	}
}

// Count 当前在线订阅者数（用于监控）
func (m *SubscriptionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
