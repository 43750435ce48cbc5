package model

import (
	"encoding/json"
	"fmt"
)

// PayloadType 消息内容类型
type PayloadType string

const (
	PayloadTypeText  PayloadType = "text"  // 文本
	PayloadTypeImage PayloadType = "image" // 图片引用
)

// MessagePayload 消息内容，text/image 二选一的带标签联合
// 序列化边界上按 Type 穷举匹配，未知类型一律拒绝
type MessagePayload struct {
	Type  PayloadType
	Text  string // 文本内容；图片消息时为可选说明文字
	Image string // 图片对象键，仅 image 类型有效
}

type messagePayloadJSON struct {
	Type  PayloadType `json:"type"`
	Text  string      `json:"text,omitempty"`
	Image string      `json:"image,omitempty"`
}

// TextPayload 构建文本消息内容
func TextPayload(text string) MessagePayload {
	return MessagePayload{Type: PayloadTypeText, Text: text}
}

// ImagePayload 构建图片消息内容
func ImagePayload(image, caption string) MessagePayload {
	return MessagePayload{Type: PayloadTypeImage, Image: image, Text: caption}
}

// MarshalJSON 实现 json.Marshaler
func (p MessagePayload) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PayloadTypeText:
		return json.Marshal(messagePayloadJSON{Type: p.Type, Text: p.Text})
	case PayloadTypeImage:
		return json.Marshal(messagePayloadJSON{Type: p.Type, Text: p.Text, Image: p.Image})
	default:
		return nil, fmt.Errorf("model: unknown payload type %q", p.Type)
	}
}

// UnmarshalJSON 实现 json.Unmarshaler
func (p *MessagePayload) UnmarshalJSON(data []byte) error {
	var aux messagePayloadJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch aux.Type {
	case PayloadTypeText:
		*p = MessagePayload{Type: aux.Type, Text: aux.Text}
	case PayloadTypeImage:
		if aux.Image == "" {
			return fmt.Errorf("model: image payload without image key")
		}
		*p = MessagePayload{Type: aux.Type, Text: aux.Text, Image: aux.Image}
	default:
		return fmt.Errorf("model: unknown payload type %q", aux.Type)
	}
	return nil
}

// MessageBody 写入事件日志的聊天消息体
type MessageBody struct {
	ID         string         `json:"id"` // 客户端消息 ID，重试时作为幂等键由调用方保证
	SenderID   int64          `json:"senderId"`
	Payload    MessagePayload `json:"payload"`
	ReceivedAt int64          `json:"receivedAt"` // 毫秒
}

// ChatMessage 对外返回的聊天消息（含传输状态）
type ChatMessage struct {
	EventID        string         `json:"eventId"`
	ConversationID string         `json:"conversationId"`
	ID             string         `json:"id"`
	SenderID       int64          `json:"senderId"`
	Payload        MessagePayload `json:"payload"`
	ReceivedAt     int64          `json:"receivedAt"`
	Accepted       bool           `json:"accepted"`
	Delivered      bool           `json:"delivered"`
}

// ChatMessagePage 消息分页结果
type ChatMessagePage struct {
	Nodes     []*ChatMessage `json:"nodes"`
	NextToken string         `json:"nextToken,omitempty"`
}
