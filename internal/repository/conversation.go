package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"sudooom.im.chat/internal/apperrors"
	"sudooom.im.chat/internal/model"
)

// ConversationRepository 会话仓库
// 持有会话元数据（成员集合、最后消息指针）和每个成员的已读指针
type ConversationRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewConversationRepository 创建会话仓库
func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{
		db:     db,
		logger: slog.Default(),
	}
}

// GetConversation 查询会话，不存在时返回 (nil, nil)
func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	query := `
		SELECT id, members, COALESCE(last_event_id, ''), last_activity, created_at
		FROM conversations WHERE id = $1
	`

	var conv model.Conversation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.Members,
		&conv.LastEventID,
		&conv.LastActivity,
		&conv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	return &conv, nil
}

// GetUserConversation 查询成员的已读状态，不存在时返回 (nil, nil)
func (r *ConversationRepository) GetUserConversation(ctx context.Context, id string, member int64) (*model.UserConversation, error) {
	query := `
		SELECT conversation_id, member_id, COALESCE(last_seen, '')
		FROM user_conversations
		WHERE conversation_id = $1 AND member_id = $2
	`

	var uc model.UserConversation
	err := r.db.QueryRow(ctx, query, id, member).Scan(
		&uc.ConversationID,
		&uc.MemberID,
		&uc.LastSeen,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	return &uc, nil
}

// ListConversations 按最近活跃倒序分页列出成员的会话
func (r *ConversationRepository) ListConversations(ctx context.Context, member int64, after string, pageSize int) (*model.ConversationPage, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	query := `
		SELECT c.id, c.last_activity
		FROM conversations c
		JOIN user_conversations uc ON uc.conversation_id = c.id
		WHERE uc.member_id = $1
	`
	args := []any{member}

	if after != "" {
		millis, id, err := parseListCursor(after)
		if err != nil {
			// 解码成功但内容不是本存储签发的游标
			return nil, apperrors.ErrInvalidToken.Wrap(err)
		}
		query += ` AND (c.last_activity, c.id) < ($2, $3)`
		args = append(args, millis, id)
	}

	query += ` ORDER BY c.last_activity DESC, c.id DESC LIMIT ` + strconv.Itoa(pageSize+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list conversations", "member", member, "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	type row struct {
		id     string
		millis int64
	}
	items := make([]row, 0, pageSize)
	for rows.Next() {
		var it row
		if err := rows.Scan(&it.id, &it.millis); err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	page := &model.ConversationPage{}
	if len(items) > pageSize {
		items = items[:pageSize]
		last := items[len(items)-1]
		page.NextToken = formatListCursor(last.millis, last.id)
	}
	for _, it := range items {
		page.IDs = append(page.IDs, it.id)
	}

	return page, nil
}

// AddMembers 将成员并入会话（集合语义，幂等），会话不存在时隐式创建
func (r *ConversationRepository) AddMembers(ctx context.Context, id string, members []int64) error {
	if len(members) == 0 {
		return nil
	}

	query := `
		INSERT INTO conversations (id, members)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET members = (
			SELECT array(SELECT DISTINCT unnest(conversations.members || EXCLUDED.members) ORDER BY 1)
		)
	`
	if _, err := r.db.Exec(ctx, query, id, members); err != nil {
		r.logger.Error("Failed to add members", "conversation", id, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}

	// 为新成员补一条已读状态记录，last_seen 为空
	seed := `
		INSERT INTO user_conversations (conversation_id, member_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT (conversation_id, member_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, seed, id, members); err != nil {
		r.logger.Error("Failed to seed user conversations", "conversation", id, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}

	return nil
}

// RemoveMembers 将成员移出会话（集合语义，幂等）
func (r *ConversationRepository) RemoveMembers(ctx context.Context, id string, members []int64) error {
	if len(members) == 0 {
		return nil
	}

	query := `
		UPDATE conversations
		SET members = COALESCE(
			(SELECT array(SELECT unnest(members) EXCEPT SELECT unnest($2::bigint[]) ORDER BY 1)),
			'{}'
		)
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, members); err != nil {
		r.logger.Error("Failed to remove members", "conversation", id, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}

	cleanup := `DELETE FROM user_conversations WHERE conversation_id = $1 AND member_id = ANY($2)`
	if _, err := r.db.Exec(ctx, cleanup, id, members); err != nil {
		r.logger.Error("Failed to remove user conversations", "conversation", id, "error", err)
		return apperrors.ErrDBError.Wrap(err)
	}

	return nil
}

// UpdateLastSeen 推进已读指针，只允许向前（事件 ID 更大才写入）
func (r *ConversationRepository) UpdateLastSeen(ctx context.Context, id string, member int64, eventID string) error {
	query := `
		INSERT INTO user_conversations (conversation_id, member_id, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id, member_id) DO UPDATE
		SET last_seen = EXCLUDED.last_seen
		WHERE user_conversations.last_seen IS NULL
		   OR user_conversations.last_seen < EXCLUDED.last_seen
	`
	if _, err := r.db.Exec(ctx, query, id, member, eventID); err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// UpdateLastMessage 更新最后消息指针，消息写入成功后调用
func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id string, eventID string) error {
	query := `
		UPDATE conversations
		SET last_event_id = $2, last_activity = $3
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id, eventID, time.Now().UnixMilli()); err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}

// MemberIDs 读取会话的持久化成员集合，权限检查走这里，绝不经过缓存
func (r *ConversationRepository) MemberIDs(ctx context.Context, id string) ([]int64, error) {
	query := `SELECT members FROM conversations WHERE id = $1`

	var members []int64
	err := r.db.QueryRow(ctx, query, id).Scan(&members)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	return members, nil
}

// formatListCursor 会话列表游标：last_activity 毫秒 + 会话 ID
func formatListCursor(millis int64, id string) string {
	return fmt.Sprintf("%d|%s", millis, id)
}

func parseListCursor(cursor string) (int64, string, error) {
	head, tail, ok := strings.Cut(cursor, "|")
	if !ok {
		return 0, "", fmt.Errorf("repository: malformed list cursor")
	}
	millis, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("repository: malformed list cursor")
	}
	return millis, tail, nil
}
