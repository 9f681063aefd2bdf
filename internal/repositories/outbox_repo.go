package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxMessage 描述需要写入 posts.outbox_events 的事件数据。
type OutboxMessage struct {
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	Attributes    map[string]string
	AvailableAt   time.Time
}

// OutboxEvent 表示从数据库读取的待发布事件。
type OutboxEvent struct {
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	Payload          []byte
	Attributes       map[string]string
	OccurredAt       time.Time
	AvailableAt      time.Time
	PublishedAt      *time.Time
	DeliveryAttempts int32
	LastError        *string
}

// OutboxRepository 提供写入与调度 Outbox 表的能力，与 TxManager Session 协作。
type OutboxRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewOutboxRepository 构造 Repository。
func NewOutboxRepository(db *pgxpool.Pool, logger log.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

func (r *OutboxRepository) conn(sess txmanager.Session) dbConn {
	if sess != nil {
		return sess.Tx()
	}
	return r.db
}

// Enqueue 在指定事务内插入 Outbox 事件。
// 与帖子写入同事务提交，保证"帖子已创建但通知丢失"不可能由崩溃产生。
func (r *OutboxRepository) Enqueue(ctx context.Context, sess txmanager.Session, msg OutboxMessage) error {
	availableAt := msg.AvailableAt.UTC()
	if availableAt.IsZero() {
		availableAt = time.Now().UTC()
	}

	// jsonb 参数以 JSON 文本传递，兼容 simple protocol 模式下的类型推断。
	attrs, err := json.Marshal(msg.Attributes)
	if err != nil {
		return fmt.Errorf("encode outbox attributes: %w", err)
	}

	const sql = `INSERT INTO posts.outbox_events (
		event_id, aggregate_type, aggregate_id, event_type, payload, attributes, available_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7)`

	if _, err := r.conn(sess).Exec(ctx, sql,
		msg.EventID, msg.AggregateType, msg.AggregateID, msg.EventType,
		string(msg.Payload), string(attrs), availableAt,
	); err != nil {
		r.log.WithContext(ctx).Errorf("insert outbox event failed: event_id=%s err=%v", msg.EventID, err)
		return fmt.Errorf("insert outbox event: %w", err)
	}

	r.log.WithContext(ctx).Debugf("outbox event enqueued: type=%s aggregate=%s", msg.EventType, msg.AggregateID)
	return nil
}

// ClaimPending 返回一批到期且未发布的 Outbox 事件。
// 需在事务内调用：FOR UPDATE SKIP LOCKED 在事务提交前持有行锁，
// 允许多个 Notifier 实例安全并行认领。
func (r *OutboxRepository) ClaimPending(ctx context.Context, sess txmanager.Session, availableBefore time.Time, limit int) ([]OutboxEvent, error) {
	const sql = `SELECT event_id, aggregate_type, aggregate_id, event_type, payload, attributes,
		occurred_at, available_at, published_at, delivery_attempts, last_error
	FROM posts.outbox_events
	WHERE published_at IS NULL AND available_at <= $1
	ORDER BY available_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED`

	rows, err := r.conn(sess).Query(ctx, sql, availableBefore.UTC(), int32(limit))
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var evt OutboxEvent
		if err := rows.Scan(
			&evt.EventID, &evt.AggregateType, &evt.AggregateID, &evt.EventType,
			&evt.Payload, &evt.Attributes,
			&evt.OccurredAt, &evt.AvailableAt, &evt.PublishedAt,
			&evt.DeliveryAttempts, &evt.LastError,
		); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished 更新事件状态为已发布。
func (r *OutboxRepository) MarkPublished(ctx context.Context, sess txmanager.Session, eventID uuid.UUID, publishedAt time.Time) error {
	const sql = `UPDATE posts.outbox_events SET published_at = $2, delivery_attempts = delivery_attempts + 1 WHERE event_id = $1`
	if _, err := r.conn(sess).Exec(ctx, sql, eventID, publishedAt.UTC()); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// Reschedule 将事件重新安排在未来时间发布，并记录最近一次错误。
func (r *OutboxRepository) Reschedule(ctx context.Context, sess txmanager.Session, eventID uuid.UUID, nextAvailable time.Time, lastErr string) error {
	const sql = `UPDATE posts.outbox_events
		SET available_at = $2, delivery_attempts = delivery_attempts + 1, last_error = NULLIF($3, '')
		WHERE event_id = $1`
	if _, err := r.conn(sess).Exec(ctx, sql, eventID, nextAvailable.UTC(), lastErr); err != nil {
		return fmt.Errorf("reschedule outbox event: %w", err)
	}
	return nil
}
