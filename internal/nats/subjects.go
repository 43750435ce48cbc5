package nats

import (
	"encoding/base64"
	"fmt"
)

// NATS Subject 常量定义
const (
	// SubjectUpstream 边界请求入口（队列组负载均衡）
	SubjectUpstream = "im.chat.upstream"

	// QueueGroupChat chat 服务队列组名称
	QueueGroupChat = "chat-group"

	// 主题事件 Subject 前缀
	// 完整格式: im.chat.topic.{base64url(topic)}
	topicSubjectPrefix = "im.chat.topic."

	// 推送 Subject 前缀
	// 完整格式: im.chat.push.{member_id}
	pushSubjectPrefix = "im.chat.push."
)

// TopicSubject 构建主题事件 Subject
// 主题名包含 NATS 保留字符（括号、冒号、逗号），编码后再拼接
func TopicSubject(topic string) string {
	return topicSubjectPrefix + base64.RawURLEncoding.EncodeToString([]byte(topic))
}

// PushSubject 构建推送 Subject
func PushSubject(member int64) string {
	return fmt.Sprintf("%s%d", pushSubjectPrefix, member)
}
