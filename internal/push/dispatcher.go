// Package push 推送分发
//
// 推送是旁路通道：入队失败或发送失败只记录日志和指标，
// 不重试也不回滚已经落库的事件。
package push

import (
	"context"
	"log/slog"
	"time"

	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/workerpool"
)

// Sender 推送发送通道（厂商网关、NATS 等）
type Sender interface {
	Send(ctx context.Context, msg *model.PushMessage) error
}

// Options 分发器配置
type Options struct {
	Workers   int
	QueueSize int
	OpTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 4096
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 5 * time.Second
	}
	return o
}

// Dispatcher 尽力而为的推送分发器
type Dispatcher struct {
	sender  Sender
	pool    *workerpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher 创建推送分发器
func NewDispatcher(sender Sender, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	logger := slog.Default()

	return &Dispatcher{
		sender:  sender,
		pool:    workerpool.New(opts.Workers, opts.QueueSize, logger),
		timeout: opts.OpTimeout,
		logger:  logger,
	}
}

// Enqueue 入队单条推送，队列满时直接丢弃
func (d *Dispatcher) Enqueue(msg *model.PushMessage) {
	ok := d.pool.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			metrics.PushDropped.Inc()
			d.logger.Warn("Push send failed",
				"recipient", msg.Recipient,
				"conversation", msg.ConversationID,
				"error", err)
			return
		}
		metrics.PushDispatched.Inc()
	})

	if !ok {
		metrics.PushDropped.Inc()
		d.logger.Warn("Push queue full, dropping notification",
			"recipient", msg.Recipient,
			"conversation", msg.ConversationID)
	}
}

// Shutdown 优雅关闭，等待在途推送发完
func (d *Dispatcher) Shutdown() {
	d.pool.Shutdown()
}
