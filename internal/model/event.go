package model

import (
	"encoding/json"
	"time"
)

// Event 频道事件日志中的一条不可变记录
// 同一频道内 ID 严格递增，日志只追加不修改
type Event struct {
	Channel       string          `json:"channel"`
	ID            string          `json:"id"`
	SenderID      int64           `json:"senderId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	ReceivedAt    time.Time       `json:"receivedAt"`
	ExpiresAt     time.Time       `json:"expiresAt,omitempty"` // 零值表示不过期
	TrackDelivery bool            `json:"trackDelivery,omitempty"`
	Delivered     bool            `json:"delivered,omitempty"`
}

// EventInput 追加事件的输入，ID 由存储层在写入时分配
type EventInput struct {
	SenderID      int64
	Payload       json.RawMessage
	TTL           time.Duration
	TrackDelivery bool
}

// ReadOptions 事件读取选项
type ReadOptions struct {
	After    string // 上一页最后一条事件的 ID（原始游标），空表示从头读
	PageSize int
	Forward  bool // true 按时间正序（追尾），false 按时间倒序（历史）
}

// EventPage 事件分页结果
type EventPage struct {
	Events    []*Event `json:"events"`
	NextToken string   `json:"nextToken,omitempty"` // 不透明游标，空表示没有更多
}

// WebsocketEvent 投递给在线订阅者的事件
type WebsocketEvent struct {
	ID            string          `json:"id"`
	EventName     string          `json:"eventName"` // 事件所属的频道/主题
	SenderID      int64           `json:"senderId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	TrackDelivery bool            `json:"trackDelivery,omitempty"`
	Delivered     bool            `json:"delivered,omitempty"`
}
