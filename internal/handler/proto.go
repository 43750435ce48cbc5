package handler

import "encoding/json"

// Request 边界请求信封
// Payload 为指针联合，恰好一个字段非空
type Request struct {
	RequestID string         `json:"requestId,omitempty"`
	MemberID  int64          `json:"memberId"`
	Payload   RequestPayload `json:"payload"`
}

// RequestPayload 请求载荷联合
type RequestPayload struct {
	Conversations     *ConversationsRequest     `json:"conversations,omitempty"`
	Conversation      *ConversationRequest      `json:"conversation,omitempty"`
	Messages          *MessagesRequest          `json:"messages,omitempty"`
	HasUnread         *HasUnreadRequest         `json:"hasUnread,omitempty"`
	SendMessage       *SendMessageRequest       `json:"sendMessage,omitempty"`
	StartConversation *StartConversationRequest `json:"startConversation,omitempty"`
	CreateGroup       *CreateGroupRequest       `json:"createGroup,omitempty"`
	AddMembers        *AddMembersRequest        `json:"addMembers,omitempty"`
	Leave             *LeaveRequest             `json:"leave,omitempty"`
	PrepareImage      *PrepareImageRequest      `json:"prepareImage,omitempty"`
}

// ConversationsRequest 会话列表
type ConversationsRequest struct {
	Token    string `json:"token,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

// ConversationRequest 会话详情
type ConversationRequest struct {
	ID string `json:"id"`
}

// MessagesRequest 消息列表
type MessagesRequest struct {
	ConversationID string `json:"conversationId"`
	Token          string `json:"token,omitempty"`
	DontMarkAsRead bool   `json:"dontMarkAsRead,omitempty"`
}

// HasUnreadRequest 未读判定
type HasUnreadRequest struct {
	ConversationID string `json:"conversationId"`
}

// SendMessageRequest 发送消息
type SendMessageRequest struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	Text           string `json:"text,omitempty"`
	Image          string `json:"image,omitempty"`
}

// StartConversationRequest 发起单聊
type StartConversationRequest struct {
	Member int64 `json:"member"`
}

// CreateGroupRequest 创建群聊
type CreateGroupRequest struct {
	Members []int64 `json:"members"`
}

// AddMembersRequest 群聊拉人
type AddMembersRequest struct {
	ConversationID string  `json:"conversationId"`
	Members        []int64 `json:"members"`
}

// LeaveRequest 退出会话
type LeaveRequest struct {
	ConversationID string `json:"conversationId"`
}

// PrepareImageRequest 申请图片对象键
type PrepareImageRequest struct {
	ConversationID string `json:"conversationId"`
}

// Response 边界响应信封
type Response struct {
	RequestID string          `json:"requestId,omitempty"`
	Code      int             `json:"code"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}
