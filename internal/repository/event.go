package repository

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"sudooom.im.chat/internal/apperrors"
	"sudooom.im.chat/internal/eventid"
	"sudooom.im.chat/internal/model"
)

// EventRepository 事件日志仓库
// 每个 channel 一条只追加的事件日志，ID 在写入时分配，
// 同一 channel 内严格递增，是并发写入唯一的串行化点
type EventRepository struct {
	db     *pgxpool.Pool
	gen    *eventid.Generator
	logger *slog.Logger
}

// NewEventRepository 创建事件日志仓库
func NewEventRepository(db *pgxpool.Pool, gen *eventid.Generator) *EventRepository {
	return &EventRepository{
		db:     db,
		gen:    gen,
		logger: slog.Default(),
	}
}

// Append 追加事件，channel 不存在时随首次写入隐式创建
func (r *EventRepository) Append(ctx context.Context, channel string, input model.EventInput) (*model.Event, error) {
	now := time.Now()

	ev := &model.Event{
		Channel:       channel,
		ID:            r.gen.Next(),
		SenderID:      input.SenderID,
		Payload:       input.Payload,
		ReceivedAt:    now,
		TrackDelivery: input.TrackDelivery,
	}

	var expiresAt *time.Time
	if input.TTL > 0 {
		t := now.Add(input.TTL)
		ev.ExpiresAt = t
		expiresAt = &t
	}

	query := `
		INSERT INTO chat_events (channel, id, sender_id, payload, received_at, expires_at, track_delivery, delivered)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`

	_, err := r.db.Exec(ctx, query,
		ev.Channel,
		ev.ID,
		ev.SenderID,
		ev.Payload,
		ev.ReceivedAt,
		expiresAt,
		ev.TrackDelivery,
	)
	if err != nil {
		r.logger.Error("Failed to append event", "channel", channel, "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	return ev, nil
}

// Read 分页读取事件，未知 channel 返回空结果而不是错误
func (r *EventRepository) Read(ctx context.Context, channel string, opts model.ReadOptions) (*model.EventPage, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}

	query := `
		SELECT channel, id, sender_id, payload, received_at, expires_at, track_delivery, delivered
		FROM chat_events
		WHERE channel = $1
		  AND (expires_at IS NULL OR expires_at > now())
	`
	args := []any{channel}

	if opts.After != "" {
		if opts.Forward {
			query += ` AND id > $2`
		} else {
			query += ` AND id < $2`
		}
		args = append(args, opts.After)
	}

	if opts.Forward {
		query += ` ORDER BY id ASC`
	} else {
		query += ` ORDER BY id DESC`
	}

	// 多取一条用于判断是否还有下一页
	query += ` LIMIT ` + strconv.Itoa(opts.PageSize+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to read events", "channel", channel, "error", err)
		return nil, apperrors.ErrDBError.Wrap(err)
	}
	defer rows.Close()

	events := make([]*model.Event, 0, opts.PageSize)
	for rows.Next() {
		var ev model.Event
		var expiresAt *time.Time
		if err := rows.Scan(
			&ev.Channel,
			&ev.ID,
			&ev.SenderID,
			&ev.Payload,
			&ev.ReceivedAt,
			&expiresAt,
			&ev.TrackDelivery,
			&ev.Delivered,
		); err != nil {
			return nil, apperrors.ErrDBError.Wrap(err)
		}
		if expiresAt != nil {
			ev.ExpiresAt = *expiresAt
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.ErrDBError.Wrap(err)
	}

	page := &model.EventPage{}
	if len(events) > opts.PageSize {
		events = events[:opts.PageSize]
		page.NextToken = events[len(events)-1].ID
	}
	page.Events = events

	return page, nil
}

// MarkDelivered 标记事件已投递（读回执推进后调用）
func (r *EventRepository) MarkDelivered(ctx context.Context, channel string, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}

	query := `UPDATE chat_events SET delivered = true WHERE channel = $1 AND id = ANY($2)`
	if _, err := r.db.Exec(ctx, query, channel, eventIDs); err != nil {
		return apperrors.ErrDBError.Wrap(err)
	}
	return nil
}
