package model

// BatchResult 批量订阅写入的单项结果
// Err 非空表示该成员的写入失败，其余成员不受影响
type BatchResult struct {
	Member int64
	Err    error
}

// FailedMembers 挑出写入失败的成员
func FailedMembers(results []BatchResult) []int64 {
	var failed []int64
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Member)
		}
	}
	return failed
}

// PushNotification 推送通知内容
type PushNotification struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Reason string `json:"reason"`
	Sender int64  `json:"sender"`
	TTL    int64  `json:"ttl,omitempty"` // 秒
}

// PushMessage 发给单个接收者的推送
type PushMessage struct {
	Recipient      int64  `json:"recipient"`
	ConversationID string `json:"conversationId"`
	EventID        string `json:"eventId"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Reason         string `json:"reason"`
	TTL            int64  `json:"ttl,omitempty"`
}
