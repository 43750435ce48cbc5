package repository

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"sudooom.im.chat/internal/apperrors"
	"sudooom.im.chat/internal/model"
)

// 每个批次的写入条数上限
const batchChunkSize = 25

// PushSubscriptionRepository 推送订阅仓库
// 持久化群聊会话的推送接收者集合，单聊的订阅关系从会话 ID 派生，不落库
type PushSubscriptionRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPushSubscriptionRepository 创建推送订阅仓库
func NewPushSubscriptionRepository(db *pgxpool.Pool) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{
		db:     db,
		logger: slog.Default(),
	}
}

// Subscribe 批量登记推送订阅（幂等 upsert），返回每个成员的写入结果
func (r *PushSubscriptionRepository) Subscribe(ctx context.Context, conversation string, members []int64) []model.BatchResult {
	query := `
		INSERT INTO push_subscriptions (conversation_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id, member_id) DO NOTHING
	`
	return r.writeBatch(ctx, conversation, members, query)
}

// Unsubscribe 批量注销推送订阅（幂等删除），返回每个成员的写入结果
func (r *PushSubscriptionRepository) Unsubscribe(ctx context.Context, conversation string, members []int64) []model.BatchResult {
	query := `DELETE FROM push_subscriptions WHERE conversation_id = $1 AND member_id = $2`
	return r.writeBatch(ctx, conversation, members, query)
}

// GetSubscribers 查询会话的推送接收者
func (r *PushSubscriptionRepository) GetSubscribers(ctx context.Context, conversation string) ([]int64, error) {
	query := `SELECT member_id FROM push_subscriptions WHERE conversation_id = $1`

	rows, err := r.db.Query(ctx, query, conversation)
	if err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var m int64
		if err := rows.Scan(&m); err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		if m != 0 {
			members = append(members, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	return members, nil
}

// writeBatch 分块批量写入，单项失败不阻断其余写入
func (r *PushSubscriptionRepository) writeBatch(ctx context.Context, conversation string, members []int64, query string) []model.BatchResult {
	results := make([]model.BatchResult, 0, len(members))

	for start := 0; start < len(members); start += batchChunkSize {
		end := start + batchChunkSize
		if end > len(members) {
			end = len(members)
		}
		chunk := members[start:end]

		batch := &pgx.Batch{}
		for _, m := range chunk {
			batch.Queue(query, conversation, m)
		}

		br := r.db.SendBatch(ctx, batch)
		chunkErrs := make([]error, len(chunk))
		for i := range chunk {
			if _, err := br.Exec(); err != nil {
				chunkErrs[i] = err
			}
		}
		if err := br.Close(); err != nil && len(chunk) > 0 && chunkErrs[len(chunk)-1] == nil {
			chunkErrs[len(chunk)-1] = err
		}

		for i, m := range chunk {
			err := chunkErrs[i]
			if err != nil {
				// 批量中断后逐条补偿，保证其余写入继续（at-least-once）
				if _, retryErr := r.db.Exec(ctx, query, conversation, m); retryErr == nil {
					err = nil
				} else {
					err = retryErr
					r.logger.Warn("Push subscription write failed",
						"conversation", conversation,
						"member", m,
						"error", retryErr)
				}
			}
			results = append(results, model.BatchResult{Member: m, Err: err})
		}
	}

	return results
}
