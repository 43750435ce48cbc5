package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"sudooom.im.chat/internal/apperrors"
	"sudooom.im.chat/internal/service"
)

// ChatHandler 边界请求处理器
// 解包请求信封，分发给聊天服务，把结果（或错误码）装回响应信封
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

// NewChatHandler 创建边界请求处理器
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: slog.Default(),
	}
}

// Handle 处理一条边界请求，总是返回可回复的响应字节
func (h *ChatHandler) Handle(ctx context.Context, data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		h.logger.Error("Failed to unmarshal request", "error", err)
		return h.encode(&Response{
			Code:    apperrors.CodeInvalidPayload,
			Message: apperrors.ErrInvalidPayload.Message,
		})
	}

	result, err := h.dispatch(ctx, &req)
	if err != nil {
		h.logger.Warn("Request failed",
			"requestId", req.RequestID,
			"member", req.MemberID,
			"code", apperrors.GetCode(err),
			"error", err)
		return h.encode(&Response{
			RequestID: req.RequestID,
			Code:      apperrors.GetCode(err),
			Message:   apperrors.GetMessage(err),
		})
	}

	data, err = json.Marshal(result)
	if err != nil {
		h.logger.Error("Failed to marshal response", "requestId", req.RequestID, "error", err)
		return h.encode(&Response{
			RequestID: req.RequestID,
			Code:      apperrors.CodeServerError,
			Message:   apperrors.ErrServerError.Message,
		})
	}

	return h.encode(&Response{
		RequestID: req.RequestID,
		Code:      apperrors.CodeSuccess,
		Data:      data,
	})
}

func (h *ChatHandler) dispatch(ctx context.Context, req *Request) (any, error) {
	p := req.Payload
	switch {
	case p.Conversations != nil:
		return h.chat.Conversations(ctx, req.MemberID, p.Conversations.Token, p.Conversations.PageSize)

	case p.Conversation != nil:
		return h.chat.Conversation(ctx, req.MemberID, p.Conversation.ID)

	case p.Messages != nil:
		return h.chat.Messages(ctx, req.MemberID, p.Messages.ConversationID, p.Messages.Token, !p.Messages.DontMarkAsRead)

	case p.HasUnread != nil:
		unread, err := h.chat.HasUnreadMessages(ctx, req.MemberID, p.HasUnread.ConversationID)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"hasUnread": unread}, nil

	case p.SendMessage != nil:
		return h.chat.SendMessage(ctx, req.MemberID, service.SendMessageInput{
			ID:             p.SendMessage.ID,
			ConversationID: p.SendMessage.ConversationID,
			Text:           p.SendMessage.Text,
			Image:          p.SendMessage.Image,
		})

	case p.StartConversation != nil:
		return h.chat.StartConversation(ctx, req.MemberID, p.StartConversation.Member)

	case p.CreateGroup != nil:
		return h.chat.CreateGroupConversation(ctx, req.MemberID, p.CreateGroup.Members)

	case p.AddMembers != nil:
		if err := h.chat.AddGroupMembers(ctx, req.MemberID, p.AddMembers.ConversationID, p.AddMembers.Members); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil

	case p.Leave != nil:
		left, err := h.chat.LeaveConversation(ctx, req.MemberID, p.Leave.ConversationID)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"left": left}, nil

	case p.PrepareImage != nil:
		key, err := h.chat.PrepareImageKey(ctx, req.MemberID, p.PrepareImage.ConversationID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"key": key}, nil

	default:
		return nil, apperrors.ErrInvalidPayload
	}
}

func (h *ChatHandler) encode(resp *Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("Failed to encode response envelope", "error", err)
		return []byte(`{"code":50001}`)
	}
	return data
}
