package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"sudooom.im.chat/internal/apperrors"
	"sudooom.im.chat/internal/chatkey"
	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
)

// SendMessageInput 发送消息输入
type SendMessageInput struct {
	ID             string `json:"id"` // 客户端消息 ID，重试时的幂等键
	ConversationID string `json:"conversationId"`
	Text           string `json:"text,omitempty"`
	Image          string `json:"image,omitempty"`
}

// StartResult 发起会话的结果
type StartResult struct {
	ID      string  `json:"id"`
	Members []int64 `json:"members"` // 不含发起者
}

// ChatService 聊天核心的对外操作
// 所有读写都先过会话访问检查，检查结果以持久化成员集合为准
type ChatService struct {
	conversations *ConversationManager
	events        *EventManager
	pushSubs      *PushSubscriptionManager
	subscriptions *SubscriptionManager
	cfg           config.ChatConfig
	logger        *slog.Logger
}

// NewChatService 创建聊天服务
func NewChatService(
	conversations *ConversationManager,
	events *EventManager,
	pushSubs *PushSubscriptionManager,
	subscriptions *SubscriptionManager,
	cfg config.ChatConfig,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		events:        events,
		pushSubs:      pushSubs,
		subscriptions: subscriptions,
		cfg:           cfg,
		logger:        slog.Default(),
	}
}

// Conversations 分页列出成员的会话，按最近活跃倒序
func (s *ChatService) Conversations(ctx context.Context, principal int64, token string, pageSize int) (*model.ConversationPage, error) {
	after, err := decodeToken(token)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 || pageSize > s.cfg.ConversationsPageSize {
		pageSize = s.cfg.ConversationsPageSize
	}

	page, err := s.conversations.GetConversations(ctx, principal, after, pageSize)
	if err != nil {
		return nil, err
	}

	page.NextToken = chatkey.EncodeToken(page.NextToken)
	return page, nil
}

// Conversation 按 ID 查询会话，要求成员身份
func (s *ChatService) Conversation(ctx context.Context, principal int64, id string) (*model.Conversation, error) {
	members, err := s.conversations.MemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if members == nil {
		return nil, apperrors.ErrConversationNotFound
	}
	if !contains(members, principal) {
		return nil, apperrors.ErrPermissionDenied
	}

	conv, err := s.conversations.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperrors.ErrConversationNotFound
	}
	return conv, nil
}

// Messages 分页读取会话消息，最新的在前
//
// 首页（无令牌）读取成功后把已读指针推进到最新一条，markRead=false 可跳过。
// delivered 由对端已读指针回溯推断：lastSeen >= eventId 即视为已投递，
// 推断结果回写事件日志，后续读取不再重算。
func (s *ChatService) Messages(ctx context.Context, principal int64, conversationID string, token string, markRead bool) (*model.ChatMessagePage, error) {
	if err := s.requireAccess(ctx, conversationID, principal); err != nil {
		return nil, err
	}

	after, err := decodeToken(token)
	if err != nil {
		return nil, err
	}

	page, err := s.events.Events(ctx, conversationID, model.ReadOptions{
		After:    after,
		PageSize: s.cfg.EventsPageSize,
		Forward:  false,
	})
	if err != nil {
		return nil, err
	}

	// 只有首页能看到最新一条，此时才推进已读指针
	if token == "" && len(page.Events) > 0 && markRead {
		if err := s.conversations.UpdateLastSeen(ctx, conversationID, principal, page.Events[0].ID); err != nil {
			return nil, err
		}
	}

	otherLastSeen := s.resolveOtherLastSeen(ctx, conversationID, principal, page.Events)

	result := &model.ChatMessagePage{
		NextToken: chatkey.EncodeToken(page.NextToken),
	}
	var nowDelivered []string
	for _, ev := range page.Events {
		msg, err := s.toChatMessage(conversationID, ev)
		if err != nil {
			s.logger.Warn("Skipping undecodable event", "conversation", conversationID, "eventId", ev.ID, "error", err)
			continue
		}

		if !msg.Delivered && otherLastSeen != "" && ev.ID <= otherLastSeen {
			msg.Delivered = true
			if ev.TrackDelivery {
				nowDelivered = append(nowDelivered, ev.ID)
			}
		}
		result.Nodes = append(result.Nodes, msg)
	}

	// 回写推断出的投递标记，失败不影响本次读取
	if len(nowDelivered) > 0 {
		if err := s.events.MarkDelivered(ctx, conversationID, nowDelivered); err != nil {
			s.logger.Warn("Failed to persist delivered flags", "conversation", conversationID, "error", err)
		}
	}

	return result, nil
}

// resolveOtherLastSeen 有未确认投递的事件时，取对端成员的已读指针
func (s *ChatService) resolveOtherLastSeen(ctx context.Context, conversationID string, principal int64, events []*model.Event) string {
	pending := false
	for _, ev := range events {
		if ev.TrackDelivery && !ev.Delivered {
			pending = true
			break
		}
	}
	if !pending {
		return ""
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil || conv == nil {
		return ""
	}

	for _, m := range conv.Members {
		if m == principal {
			continue
		}
		uc, err := s.conversations.GetUserConversation(ctx, conversationID, m)
		if err != nil || uc == nil {
			return ""
		}
		return uc.LastSeen
	}
	return ""
}

// HasUnreadMessages 未读判定：已读指针为空或落后于最后消息
func (s *ChatService) HasUnreadMessages(ctx context.Context, principal int64, id string) (bool, error) {
	if err := s.requireAccess(ctx, id, principal); err != nil {
		return false, err
	}

	user, err := s.conversations.GetUserConversation(ctx, id, principal)
	if err != nil {
		return false, err
	}
	global, err := s.conversations.GetConversation(ctx, id)
	if err != nil {
		return false, err
	}

	if user == nil || global == nil {
		return true, nil
	}
	if user.LastSeen == "" && global.LastEventID != "" {
		return true, nil
	}
	if global.LastEventID == "" {
		return false, nil
	}
	return user.LastSeen < global.LastEventID, nil
}

// SendMessage 发送消息
//
// 事件落库是唯一的持久性保证：返回给调用方之前只等待落库，
// 在线扇出和离线推送都在旁路上尽力而为。落库失败向调用方传播，
// 由调用方带同一客户端消息 ID 整体重试。
func (s *ChatService) SendMessage(ctx context.Context, principal int64, input SendMessageInput) (*model.ChatMessage, error) {
	if err := s.requireAccess(ctx, input.ConversationID, principal); err != nil {
		return nil, err
	}

	payload, err := s.buildPayload(input)
	if err != nil {
		return nil, err
	}

	body := model.MessageBody{
		ID:         input.ID,
		SenderID:   principal,
		Payload:    payload,
		ReceivedAt: time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.ErrInvalidPayload.Wrap(err)
	}

	events, err := s.events.Post(ctx, PostInput{
		Triggers:      []string{input.ConversationID},
		SenderID:      principal,
		Payload:       raw,
		Push:          s.buildPushNotification(principal, payload),
		TTL:           s.cfg.MessageTTL,
		TrackDelivery: true,
	})
	if err != nil {
		return nil, err
	}
	ev := events[0]

	if err := s.conversations.UpdateLastMessage(ctx, input.ConversationID, ev.ID); err != nil {
		return nil, err
	}

	// 必须在最后消息指针更新之后：发送者自己立即视为已读
	if err := s.conversations.UpdateLastSeen(ctx, input.ConversationID, principal, ev.ID); err != nil {
		return nil, err
	}

	s.notifyConversationUpdate(ctx, input.ConversationID, principal)
	metrics.MessagesSent.Inc()

	return &model.ChatMessage{
		EventID:        ev.ID,
		ConversationID: input.ConversationID,
		ID:             body.ID,
		SenderID:       principal,
		Payload:        payload,
		ReceivedAt:     body.ReceivedAt,
		Accepted:       true,
		Delivered:      false,
	}, nil
}

// buildPayload 构建并校验消息内容
func (s *ChatService) buildPayload(input SendMessageInput) (model.MessagePayload, error) {
	if input.Image != "" {
		// 图片键必须挂在本会话名下
		if !strings.HasPrefix(input.Image, input.ConversationID) {
			return model.MessagePayload{}, apperrors.ErrInvalidImageKey
		}
		return model.ImagePayload(input.Image, truncate(input.Text, s.cfg.MaxTextLength)), nil
	}

	if input.Text == "" {
		return model.MessagePayload{}, apperrors.ErrInvalidPayload
	}
	return model.TextPayload(truncate(input.Text, s.cfg.MaxTextLength)), nil
}

// buildPushNotification 构建推送内容，正文截断
func (s *ChatService) buildPushNotification(sender int64, payload model.MessagePayload) *model.PushNotification {
	body := payload.Text
	if body == "" {
		body = "New message"
	}
	if utf8.RuneCountInString(body) > 199 {
		body = truncate(body, 197) + "..."
	}

	return &model.PushNotification{
		Title:  "New message",
		Body:   body,
		Reason: "chatmessage",
		Sender: sender,
		TTL:    int64(24 * time.Hour / time.Second),
	}
}

// notifyConversationUpdate 把会话 ID 扇出到每个成员的会话更新频道
// 消息本体已落库，这里失败只记录日志
func (s *ChatService) notifyConversationUpdate(ctx context.Context, conversationID string, sender int64) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil || conv == nil {
		s.logger.Warn("Failed to load conversation for update fan-out", "conversation", conversationID, "error", err)
		return
	}

	triggers := make([]string, 0, len(conv.Members))
	for _, m := range conv.Members {
		triggers = append(triggers, chatkey.AllConversations(m))
	}

	payload, _ := json.Marshal(conversationID)
	if _, err := s.events.Post(ctx, PostInput{
		Triggers: triggers,
		SenderID: sender,
		Payload:  payload,
		TTL:      s.cfg.MessageTTL,
	}); err != nil {
		s.logger.Warn("Conversation update fan-out failed", "conversation", conversationID, "error", err)
	}
}

// StartConversation 发起单聊
func (s *ChatService) StartConversation(ctx context.Context, principal int64, other int64) (*StartResult, error) {
	if principal == other {
		return nil, apperrors.ErrSelfConversation
	}

	id := chatkey.Direct(principal, other)

	members, err := s.conversations.MemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if contains(members, principal) {
		return &StartResult{ID: id, Members: []int64{other}}, nil
	}

	if err := s.conversations.AddMembers(ctx, id, []int64{principal, other}); err != nil {
		return nil, err
	}
	// 单聊订阅从会话 ID 派生，这里是空操作，保持调用对称
	s.pushSubs.Subscribe(ctx, id, []int64{principal, other})

	s.logger.Info("Conversation started", "conversation", id, "principal", principal, "other", other)
	return &StartResult{ID: id, Members: []int64{other}}, nil
}

// CreateGroupConversation 创建群聊
func (s *ChatService) CreateGroupConversation(ctx context.Context, principal int64, members []int64) (*StartResult, error) {
	all := make([]int64, 0, len(members)+1)
	all = append(all, principal)
	for _, m := range members {
		if m != principal && !contains(all, m) {
			all = append(all, m)
		}
	}
	if len(all) < 2 {
		return nil, apperrors.ErrInvalidPayload
	}

	id := chatkey.Group()
	if err := s.conversations.AddMembers(ctx, id, all); err != nil {
		return nil, err
	}
	s.pushSubs.Subscribe(ctx, id, all)

	s.logger.Info("Group conversation created", "conversation", id, "members", all)
	return &StartResult{ID: id, Members: all[1:]}, nil
}

// AddGroupMembers 向群聊拉人，要求发起者是成员
func (s *ChatService) AddGroupMembers(ctx context.Context, principal int64, id string, members []int64) error {
	if chatkey.IsDirect(id) {
		return apperrors.ErrPermissionDenied
	}
	if err := s.requireAccess(ctx, id, principal); err != nil {
		return err
	}

	if err := s.conversations.AddMembers(ctx, id, members); err != nil {
		return err
	}
	s.pushSubs.Subscribe(ctx, id, members)
	return nil
}

// LeaveConversation 退出会话
// 单聊无法退出：成员集合不动，只做（空操作的）推送注销
func (s *ChatService) LeaveConversation(ctx context.Context, principal int64, id string) (bool, error) {
	if err := s.requireAccess(ctx, id, principal); err != nil {
		return false, err
	}

	if !chatkey.IsDirect(id) {
		if err := s.conversations.RemoveMembers(ctx, id, []int64{principal}); err != nil {
			return false, err
		}
	}

	s.pushSubs.Unsubscribe(ctx, id, []int64{principal})

	s.logger.Info("Member left conversation", "conversation", id, "member", principal)
	return true, nil
}

// PrepareImageKey 生成会话名下的图片对象键（上传签名由外部完成）
func (s *ChatService) PrepareImageKey(ctx context.Context, principal int64, conversationID string) (string, error) {
	if err := s.requireAccess(ctx, conversationID, principal); err != nil {
		return "", err
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s.jpg", conversationID, hex.EncodeToString(buf)), nil
}

// SubscribeConversationUpdates 订阅本人的会话更新流
func (s *ChatService) SubscribeConversationUpdates(ctx context.Context, principal int64, clientID string) (<-chan *model.WebsocketEvent, error) {
	topic := chatkey.AllConversations(principal)
	return s.subscriptions.Subscribe(ctx, clientID, []string{topic})
}

// SubscribeNewMessages 订阅会话的新消息流，要求成员身份
func (s *ChatService) SubscribeNewMessages(ctx context.Context, principal int64, clientID string, conversationID string) (<-chan *model.WebsocketEvent, error) {
	if err := s.requireAccess(ctx, conversationID, principal); err != nil {
		return nil, err
	}
	return s.subscriptions.Subscribe(ctx, clientID, []string{conversationID})
}

// UnsubscribeClient 拆除在线订阅
func (s *ChatService) UnsubscribeClient(clientID string) {
	s.subscriptions.Unsubscribe(clientID)
}

// requireAccess 会话访问检查，失败返回权限错误
func (s *ChatService) requireAccess(ctx context.Context, conversationID string, principal int64) error {
	ok, err := s.conversations.CheckAccess(ctx, conversationID, principal)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrPermissionDenied
	}
	return nil
}

// toChatMessage 事件还原为聊天消息
func (s *ChatService) toChatMessage(conversationID string, ev *model.Event) (*model.ChatMessage, error) {
	var body model.MessageBody
	if err := json.Unmarshal(ev.Payload, &body); err != nil {
		return nil, err
	}

	return &model.ChatMessage{
		EventID:        ev.ID,
		ConversationID: conversationID,
		ID:             body.ID,
		SenderID:       body.SenderID,
		Payload:        body.Payload,
		ReceivedAt:     body.ReceivedAt,
		Accepted:       true,
		Delivered:      ev.Delivered,
	}, nil
}

func decodeToken(token string) (string, error) {
	raw, err := chatkey.DecodeToken(token)
	if err != nil {
		return "", apperrors.ErrInvalidToken.Wrap(err)
	}
	return raw, nil
}

func contains(members []int64, member int64) bool {
	for _, m := range members {
		if m == member {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
