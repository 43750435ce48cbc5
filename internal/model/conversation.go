package model

import "time"

// Conversation 会话信息（持久化于 PostgreSQL）
type Conversation struct {
	ID           string    `json:"id"`
	Members      []int64   `json:"members"`                // 成员集合，无序
	LastEventID  string    `json:"lastEventId,omitempty"`  // 最后一条消息的事件 ID，空表示尚无消息
	LastActivity int64     `json:"lastActivity,omitempty"` // 最后活跃时间（毫秒）
	CreatedAt    time.Time `json:"createdAt"`
}

// HasMember 判断成员是否在会话中
func (c *Conversation) HasMember(member int64) bool {
	for _, m := range c.Members {
		if m == member {
			return true
		}
	}
	return false
}

// UserConversation 成员在会话中的已读状态
type UserConversation struct {
	ConversationID string `json:"conversationId"`
	MemberID       int64  `json:"memberId"`
	LastSeen       string `json:"lastSeen,omitempty"` // 最后已读的事件 ID，空表示从未读过
}

// ConversationPage 会话列表分页结果
type ConversationPage struct {
	IDs       []string `json:"ids"`
	NextToken string   `json:"nextToken,omitempty"` // 不透明游标，空表示没有更多
}
