package handler

import (
	"context"
	"encoding/json"
	"testing"

	"sudooom.im.chat/internal/apperrors"
	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/service"
)

// brokenStore 模拟存储故障：所有操作返回包装后的数据库错误
type brokenStore struct {
	err error
}

func (s *brokenStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return nil, s.err
}

func (s *brokenStore) GetUserConversation(ctx context.Context, id string, member int64) (*model.UserConversation, error) {
	return nil, s.err
}

func (s *brokenStore) ListConversations(ctx context.Context, member int64, after string, pageSize int) (*model.ConversationPage, error) {
	return nil, s.err
}

func (s *brokenStore) AddMembers(ctx context.Context, id string, members []int64) error {
	return s.err
}

func (s *brokenStore) RemoveMembers(ctx context.Context, id string, members []int64) error {
	return s.err
}

func (s *brokenStore) UpdateLastSeen(ctx context.Context, id string, member int64, eventID string) error {
	return s.err
}

func (s *brokenStore) UpdateLastMessage(ctx context.Context, id string, eventID string) error {
	return s.err
}

func (s *brokenStore) MemberIDs(ctx context.Context, id string) ([]int64, error) {
	return nil, s.err
}

type nopBus struct{}

func (nopBus) SubscribeTopic(topic string, handler func(*model.WebsocketEvent)) (func() error, error) {
	return func() error { return nil }, nil
}

func newBrokenHandler(err error) *ChatHandler {
	conversations := service.NewConversationManager(&brokenStore{err: err})
	events := service.NewEventManager(nil, nil, nil, nil)
	pushSubs := service.NewPushSubscriptionManager(nil)
	subscriptions := service.NewSubscriptionManager(nopBus{}, 1)
	chat := service.NewChatService(conversations, events, pushSubs, subscriptions, config.ChatConfig{
		ConversationsPageSize: 20,
		EventsPageSize:        25,
		MaxTextLength:         4000,
	})
	return NewChatHandler(chat)
}

func handle(t *testing.T, h *ChatHandler, req Request) *Response {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(h.Handle(context.Background(), data), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return &resp
}

// 存储故障回数据库错误码，而不是笼统的服务器错误
func TestHandlerReportsStoreFailures(t *testing.T) {
	h := newBrokenHandler(apperrors.ErrDBError.Wrap(context.DeadlineExceeded))

	resp := handle(t, h, Request{
		RequestID: "r1",
		MemberID:  1,
		Payload: RequestPayload{SendMessage: &SendMessageRequest{
			ID:             "m1",
			ConversationID: "CONV(:1,:2)",
			Text:           "hi",
		}},
	})

	if resp.Code != apperrors.CodeDBError {
		t.Fatalf("expected code %d, got %d (%s)", apperrors.CodeDBError, resp.Code, resp.Message)
	}
	if resp.RequestID != "r1" {
		t.Errorf("request id not echoed, got %q", resp.RequestID)
	}
}

func TestHandlerRejectsMalformedRequests(t *testing.T) {
	h := newBrokenHandler(apperrors.ErrDBError)

	var resp Response
	if err := json.Unmarshal(h.Handle(context.Background(), []byte("{not json")), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Code != apperrors.CodeInvalidPayload {
		t.Errorf("malformed JSON: expected %d, got %d", apperrors.CodeInvalidPayload, resp.Code)
	}

	// 空载荷联合同样拒绝
	empty := handle(t, h, Request{MemberID: 1})
	if empty.Code != apperrors.CodeInvalidPayload {
		t.Errorf("empty payload: expected %d, got %d", apperrors.CodeInvalidPayload, empty.Code)
	}
}
