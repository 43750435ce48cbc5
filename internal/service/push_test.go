package service

import (
	"context"
	"errors"
	"testing"

	"sudooom.im.chat/internal/model"
)

// flakyPushStore 指定成员写入失败，其余照常
type flakyPushStore struct {
	memPushStore
	failing map[int64]bool
}

func (s *flakyPushStore) Subscribe(ctx context.Context, conversation string, members []int64) []model.BatchResult {
	results := make([]model.BatchResult, 0, len(members))
	for _, m := range members {
		if s.failing[m] {
			results = append(results, model.BatchResult{Member: m, Err: errors.New("write failed")})
			continue
		}
		results = append(results, s.memPushStore.Subscribe(ctx, conversation, []int64{m})...)
	}
	return results
}

func TestPushSubscribeContinuesPastFailures(t *testing.T) {
	store := &flakyPushStore{
		memPushStore: memPushStore{subs: make(map[string][]int64)},
		failing:      map[int64]bool{2: true},
	}
	mgr := NewPushSubscriptionManager(store)
	ctx := context.Background()

	results := mgr.Subscribe(ctx, "GROUP(flaky)", []int64{1, 2, 3})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	failed := model.FailedMembers(results)
	if len(failed) != 1 || failed[0] != 2 {
		t.Fatalf("expected only member 2 to fail, got %v", failed)
	}

	// 失败不影响其余成员
	subs, err := mgr.GetSubscribers(ctx, "GROUP(flaky)")
	if err != nil {
		t.Fatalf("GetSubscribers: %v", err)
	}
	got := map[int64]bool{}
	for _, m := range subs {
		got[m] = true
	}
	if !got[1] || !got[3] || got[2] {
		t.Fatalf("expected members 1 and 3 subscribed, got %v", subs)
	}

	// 补偿重试：同一成员再次订阅是幂等的
	store.failing[2] = false
	results = mgr.Subscribe(ctx, "GROUP(flaky)", []int64{2})
	if failed := model.FailedMembers(results); len(failed) != 0 {
		t.Fatalf("retry should succeed, got failures %v", failed)
	}
}

func TestDirectSubscribeIsNoop(t *testing.T) {
	store := newMemPushStore()
	mgr := NewPushSubscriptionManager(store)
	ctx := context.Background()

	if results := mgr.Subscribe(ctx, "CONV(:1,:2)", []int64{1, 2}); results != nil {
		t.Fatalf("direct subscribe should be a no-op, got %v", results)
	}
	if results := mgr.Unsubscribe(ctx, "CONV(:1,:2)", []int64{1}); results != nil {
		t.Fatalf("direct unsubscribe should be a no-op, got %v", results)
	}

	// 接收者直接从会话 ID 解出
	subs, err := mgr.GetSubscribers(ctx, "CONV(:1,:2)")
	if err != nil {
		t.Fatalf("GetSubscribers: %v", err)
	}
	if len(subs) != 2 || subs[0] != 1 || subs[1] != 2 {
		t.Fatalf("expected [1 2], got %v", subs)
	}

	// 畸形 key 不报错，只是没有接收者
	subs, err = mgr.GetSubscribers(ctx, "CONV(garbage")
	if err != nil || subs != nil {
		t.Fatalf("expected nil,nil for malformed key, got %v %v", subs, err)
	}
}
