package nats

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// RequestHandler 边界请求处理器接口
// 返回的字节作为 request/reply 的应答原样回给请求方
type RequestHandler interface {
	Handle(ctx context.Context, data []byte) []byte
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	WorkerCount int // Worker 数量
	BufferSize  int // 消息缓冲区大小
}

// RequestSubscriber 边界请求订阅器
// 队列组订阅上行 Subject，多实例间负载均衡；消息经有界缓冲
// 交给 Worker Pool 处理，缓冲满时丢弃（请求方按超时重试）
type RequestSubscriber struct {
	nc           *nats.Conn
	handler      RequestHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

// NewRequestSubscriber 创建边界请求订阅器
func NewRequestSubscriber(nc *nats.Conn, handler RequestHandler, config SubscriberConfig) *RequestSubscriber {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 100
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}

	return &RequestSubscriber{
		nc:      nc,
		handler: handler,
		logger:  slog.Default(),
		config:  config,
	}
}

// Start 启动订阅
func (s *RequestSubscriber) Start(ctx context.Context) error {
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	sub, err := s.nc.QueueSubscribe(SubjectUpstream, QueueGroupChat, func(msg *nats.Msg) {
		select {
		case s.msgChan <- msg:
		default:
			s.logger.Warn("Request buffer full, dropping request", "bufferSize", s.config.BufferSize)
		}
	})
	if err != nil {
		cancel()
		return err
	}

	s.subscription = sub
	s.logger.Info("Request subscriber started",
		"subject", SubjectUpstream,
		"queueGroup", QueueGroupChat,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

// worker 工作协程
func (s *RequestSubscriber) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgChan:
			if !ok {
				return
			}

			reply := s.handler.Handle(ctx, msg.Data)
			if msg.Reply == "" {
				continue
			}
			if err := msg.Respond(reply); err != nil {
				s.logger.Error("Failed to respond", "error", err)
			}
		}
	}
}

// Stop 停止订阅
func (s *RequestSubscriber) Stop() error {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	s.wg.Wait()

	s.logger.Info("Request subscriber stopped")
	return nil
}

// GetBufferUsage 获取缓冲区使用情况（用于监控）
func (s *RequestSubscriber) GetBufferUsage() (current int, capacity int) {
	if s.msgChan == nil {
		return 0, 0
	}
	return len(s.msgChan), cap(s.msgChan)
}
