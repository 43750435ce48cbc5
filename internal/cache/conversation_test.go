package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.im.chat/internal/model"
)

// 注意：这些测试需要一个运行中的 Redis 实例
// 如果没有 Redis，测试将被跳过

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("跳过测试：无法连接 Redis: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() { client.Close() })
	return client
}

// countingStore 记录底层存储的读取次数
type countingStore struct {
	conversations map[string]*model.Conversation
	lastSeen      map[string]string
	getCalls      int
	userCalls     int
}

func newCountingStore() *countingStore {
	return &countingStore{
		conversations: make(map[string]*model.Conversation),
		lastSeen:      make(map[string]string),
	}
}

func userKey(id string, member int64) string {
	return fmt.Sprintf("%s|%d", id, member)
}

func (s *countingStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.getCalls++
	return s.conversations[id], nil
}

func (s *countingStore) GetUserConversation(ctx context.Context, id string, member int64) (*model.UserConversation, error) {
	s.userCalls++
	seen, ok := s.lastSeen[userKey(id, member)]
	if !ok {
		return nil, nil
	}
	return &model.UserConversation{ConversationID: id, MemberID: member, LastSeen: seen}, nil
}

func (s *countingStore) ListConversations(ctx context.Context, member int64, after string, pageSize int) (*model.ConversationPage, error) {
	return &model.ConversationPage{}, nil
}

func (s *countingStore) AddMembers(ctx context.Context, id string, members []int64) error {
	conv, ok := s.conversations[id]
	if !ok {
		conv = &model.Conversation{ID: id, CreatedAt: time.Now()}
		s.conversations[id] = conv
	}
	conv.Members = append(conv.Members, members...)
	return nil
}

func (s *countingStore) RemoveMembers(ctx context.Context, id string, members []int64) error {
	return nil
}

func (s *countingStore) UpdateLastSeen(ctx context.Context, id string, member int64, eventID string) error {
	s.lastSeen[userKey(id, member)] = eventID
	return nil
}

func (s *countingStore) UpdateLastMessage(ctx context.Context, id string, eventID string) error {
	if conv, ok := s.conversations[id]; ok {
		conv.LastEventID = eventID
	}
	return nil
}

func (s *countingStore) MemberIDs(ctx context.Context, id string) ([]int64, error) {
	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return conv.Members, nil
}

func TestCachedConversationStore_ReadThrough(t *testing.T) {
	client := getTestRedisClient(t)
	store := newCountingStore()
	cached := NewCachedConversationStore(store, New(client, time.Minute))
	ctx := context.Background()

	id := "CONV(:1,:2)"
	store.conversations[id] = &model.Conversation{ID: id, Members: []int64{1, 2}, CreatedAt: time.Now()}

	// 第一次读穿透到底层并回填
	conv, err := cached.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv == nil || conv.ID != id {
		t.Fatalf("Unexpected conversation %+v", conv)
	}
	if store.getCalls != 1 {
		t.Fatalf("Expected 1 store read, got %d", store.getCalls)
	}

	// 第二次读命中缓存
	if _, err := cached.GetConversation(ctx, id); err != nil {
		t.Fatalf("GetConversation (cached) failed: %v", err)
	}
	if store.getCalls != 1 {
		t.Errorf("Expected cache hit, store reads = %d", store.getCalls)
	}

	// 不存在的会话不回填
	missing, err := cached.GetConversation(ctx, "CONV(:8,:9)")
	if err != nil || missing != nil {
		t.Fatalf("Expected nil,nil for missing conversation, got %+v %v", missing, err)
	}
}

func TestCachedConversationStore_InvalidateOnWrite(t *testing.T) {
	client := getTestRedisClient(t)
	store := newCountingStore()
	cached := NewCachedConversationStore(store, New(client, time.Minute))
	ctx := context.Background()

	id := "CONV(:3,:4)"
	store.conversations[id] = &model.Conversation{ID: id, Members: []int64{3, 4}, CreatedAt: time.Now()}

	// 预热缓存
	if _, err := cached.GetConversation(ctx, id); err != nil {
		t.Fatalf("warm GetConversation: %v", err)
	}

	// 写操作失效缓存，下次读必须看到新值
	if err := cached.UpdateLastMessage(ctx, id, "0000000000042"); err != nil {
		t.Fatalf("UpdateLastMessage failed: %v", err)
	}
	conv, err := cached.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("GetConversation after write failed: %v", err)
	}
	if conv.LastEventID != "0000000000042" {
		t.Fatalf("Stale read after invalidation: %+v", conv)
	}
	if store.getCalls != 2 {
		t.Errorf("Expected store re-read after invalidation, got %d reads", store.getCalls)
	}
}

func TestCachedConversationStore_UserConversation(t *testing.T) {
	client := getTestRedisClient(t)
	store := newCountingStore()
	cached := NewCachedConversationStore(store, New(client, time.Minute))
	ctx := context.Background()

	id := "CONV(:5,:6)"

	// 预热（未读过，不回填）
	uc, err := cached.GetUserConversation(ctx, id, 5)
	if err != nil || uc != nil {
		t.Fatalf("Expected nil,nil before first read, got %+v %v", uc, err)
	}

	if err := cached.UpdateLastSeen(ctx, id, 5, "0000000000007"); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}

	uc, err = cached.GetUserConversation(ctx, id, 5)
	if err != nil {
		t.Fatalf("GetUserConversation failed: %v", err)
	}
	if uc == nil || uc.LastSeen != "0000000000007" {
		t.Fatalf("Unexpected user conversation %+v", uc)
	}

	calls := store.userCalls
	if _, err := cached.GetUserConversation(ctx, id, 5); err != nil {
		t.Fatalf("GetUserConversation (cached) failed: %v", err)
	}
	if store.userCalls != calls {
		t.Errorf("Expected cache hit, store reads went %d -> %d", calls, store.userCalls)
	}

	// 推进已读指针后缓存失效
	if err := cached.UpdateLastSeen(ctx, id, 5, "0000000000009"); err != nil {
		t.Fatalf("UpdateLastSeen forward failed: %v", err)
	}
	uc, err = cached.GetUserConversation(ctx, id, 5)
	if err != nil {
		t.Fatalf("GetUserConversation after update failed: %v", err)
	}
	if uc.LastSeen != "0000000000009" {
		t.Fatalf("Stale last_seen after invalidation: %+v", uc)
	}
}

func TestCacheCorruptEntryTreatedAsMiss(t *testing.T) {
	client := getTestRedisClient(t)
	c := New(client, time.Minute)
	ctx := context.Background()

	key := ConversationKey("CONV(:7,:8)")
	if err := client.Set(ctx, key, "not-json", time.Minute).Err(); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var dest model.Conversation
	hit, err := c.GetJSON(ctx, key, &dest)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if hit {
		t.Fatal("Corrupt entry must be treated as a miss")
	}

	// 损坏的条目被删除
	if err := client.Get(ctx, key).Err(); err != redis.Nil {
		t.Errorf("Expected corrupt entry to be deleted, got %v", err)
	}
}
