// Package metrics Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent 发送成功的聊天消息数
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "im_chat",
		Name:      "messages_sent_total",
		Help:      "Chat messages accepted by the event store.",
	})

	// EventsAppended 追加到事件日志的事件数（按频道类型）
	EventsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "im_chat",
		Name:      "events_appended_total",
		Help:      "Events appended to channel logs.",
	}, []string{"kind"})

	// PushDispatched 入队成功的推送数
	PushDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "im_chat",
		Name:      "push_dispatched_total",
		Help:      "Push notifications handed to the dispatcher.",
	})

	// PushDropped 因队列满或发送失败而放弃的推送数
	PushDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "im_chat",
		Name:      "push_dropped_total",
		Help:      "Push notifications dropped (queue full or send failure).",
	})

	// CacheHits 会话缓存命中数
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "im_chat",
		Name:      "cache_hits_total",
		Help:      "Conversation cache hits.",
	})

	// CacheMisses 会话缓存未命中数
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "im_chat",
		Name:      "cache_misses_total",
		Help:      "Conversation cache misses.",
	})

	// LiveSubscribers 当前在线订阅者数
	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "im_chat",
		Name:      "live_subscribers",
		Help:      "Currently connected live subscribers.",
	})
)
