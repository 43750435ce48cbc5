// Package chatkey 会话标识与分页令牌
//
// 会话 ID 的线格式：
//   - 单聊：CONV(:a,:b)，a 为较小的成员 ID
//   - 群聊：GROUP(<uuid>)
//   - 用户会话更新频道：ALL(:m)
//
// 对外暴露的 ID 与分页游标一律经 base64url 编码为不透明令牌。
package chatkey

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// DirectPrefix 单聊会话 ID 前缀
	DirectPrefix = "CONV("

	// GroupPrefix 群聊会话 ID 前缀
	GroupPrefix = "GROUP("

	// AllPrefix 用户会话更新频道前缀
	AllPrefix = "ALL("
)

// Direct 构建单聊会话 ID，与成员顺序无关
func Direct(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("CONV(:%d,:%d)", a, b)
}

// Group 生成一个新的群聊会话 ID
func Group() string {
	return fmt.Sprintf("GROUP(%s)", uuid.NewString())
}

// AllConversations 构建用户的会话更新频道
func AllConversations(member int64) string {
	return fmt.Sprintf("ALL(:%d)", member)
}

// IsDirect 判断是否为单聊会话
func IsDirect(id string) bool {
	return strings.HasPrefix(id, DirectPrefix)
}

// ParseDirect 从单聊会话 ID 中解出两个成员 ID
func ParseDirect(id string) (int64, int64, bool) {
	if !IsDirect(id) || !strings.HasSuffix(id, ")") {
		return 0, 0, false
	}

	inner := strings.NewReplacer("CONV(", "", ")", "", ":", "").Replace(id)
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	a, errA := strconv.ParseInt(parts[0], 10, 64)
	b, errB := strconv.ParseInt(parts[1], 10, 64)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return a, b, true
}

// EncodeToken 将内部标识编码为不透明令牌，空值映射为空令牌
func EncodeToken(id string) string {
	if id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeToken 解码不透明令牌，空令牌映射回空值
func DecodeToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
