package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sudooom.im.chat/internal/model"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []*model.PushMessage
	err  error
	done chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg *model.PushMessage) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcherDelivers(t *testing.T) {
	sender := &recordingSender{done: make(chan struct{}, 4)}
	d := NewDispatcher(sender, Options{Workers: 2, QueueSize: 8})
	defer d.Shutdown()

	for i := 0; i < 3; i++ {
		d.Enqueue(&model.PushMessage{Recipient: int64(i + 1), Title: "New message"})
	}

	for i := 0; i < 3; i++ {
		select {
		case <-sender.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("push %d not delivered in time", i)
		}
	}
	if sender.count() != 3 {
		t.Fatalf("expected 3 sends, got %d", sender.count())
	}
}

func TestDispatcherToleratesSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("gateway unavailable"), done: make(chan struct{}, 1)}
	d := NewDispatcher(sender, Options{Workers: 1, QueueSize: 4})
	defer d.Shutdown()

	// 发送失败只记录，不 panic 不重试
	d.Enqueue(&model.PushMessage{Recipient: 1})

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("send was not attempted")
	}
	if sender.count() != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", sender.count())
	}
}

func TestDispatcherShutdownStopsAccepting(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, Options{Workers: 1, QueueSize: 1})
	d.Shutdown()

	// 关闭后入队被丢弃，不阻塞不崩溃
	d.Enqueue(&model.PushMessage{Recipient: 1})
}
