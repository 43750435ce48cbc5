// Package eventid 事件 ID 生成器
//
// 生成的 ID 为固定宽度字符串：毫秒时间戳-节点号-毫秒内序号。
// 字节序等于时间序，可直接用于事件日志的排序和分页游标。
package eventid

import (
	"fmt"
	"sync"
	"time"
)

const (
	maxNodeID   = 999
	maxSequence = 999999
)

// Generator 事件 ID 生成器节点
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastTime int64
}

// NewGenerator 创建事件 ID 生成器
func NewGenerator(nodeID int64) *Generator {
	if nodeID < 0 || nodeID > maxNodeID {
		nodeID = 1
	}
	return &Generator{
		nodeID:   nodeID,
		sequence: 0,
	}
}

// Next 生成下一个 ID，同一进程内严格递增
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	// 时钟回拨时沿用上一时间戳，保持单调
	if now < g.lastTime {
		now = g.lastTime
	}

	if now == g.lastTime {
		g.sequence++
		if g.sequence > maxSequence {
			// 序号用尽，等待下一毫秒
			for now <= g.lastTime {
				now = time.Now().UnixMilli()
			}
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}

	g.lastTime = now

	return Format(now, g.nodeID, g.sequence)
}

// Format 编码 ID 的各个分量
func Format(millis, nodeID, sequence int64) string {
	return fmt.Sprintf("%013d-%03d-%06d", millis, nodeID, sequence)
}

// Timestamp 从 ID 中解出毫秒时间戳
func Timestamp(id string) (int64, bool) {
	if len(id) != 24 || id[13] != '-' || id[17] != '-' {
		return 0, false
	}
	var millis int64
	for i := 0; i < 13; i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		millis = millis*10 + int64(c-'0')
	}
	return millis, true
}
