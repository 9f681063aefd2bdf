// Package events 定义写入 Outbox 的领域事件。
// 事件载荷以 JSON 编码，经 Notifier 任务发布到 Pub/Sub，由下游推送服务消费。
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 事件类型常量，作为 Pub/Sub attributes 中的 event_type。
const (
	TypeStitchCreated  = "posts.stitch.created"  // 回复触发的会话通知
	TypeMentionCreated = "posts.mention.created" // 显式 @ 标记触发的提及通知
)

// AggregateTypePost 为本服务事件统一的聚合类型。
const AggregateTypePost = "video_post"

// SchemaVersion 为当前事件载荷的模式版本。
const SchemaVersion = "v1"

// NotificationEvent 为发往通知传输层的统一事件载荷。
// Recipients 由 Fan-out Resolver 决策完成，传输层不再做任何过滤。
type NotificationEvent struct {
	EventID    uuid.UUID   `json:"event_id"`
	Kind       string      `json:"kind"`
	PostID     uuid.UUID   `json:"post_id"`
	ThreadID   uuid.UUID   `json:"thread_id"`
	ParentID   *uuid.UUID  `json:"parent_id,omitempty"`
	Depth      int16       `json:"depth"`
	ActorID    uuid.UUID   `json:"actor_id"`
	Recipients []uuid.UUID `json:"recipients"`
	Title      string      `json:"title"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Validate 校验事件的必备字段。
func (e *NotificationEvent) Validate() error {
	if e.EventID == uuid.Nil {
		return fmt.Errorf("notification event: event id is required")
	}
	if e.Kind != TypeStitchCreated && e.Kind != TypeMentionCreated {
		return fmt.Errorf("notification event: unknown kind %q", e.Kind)
	}
	if e.PostID == uuid.Nil || e.ActorID == uuid.Nil {
		return fmt.Errorf("notification event: post id and actor id are required")
	}
	if len(e.Recipients) == 0 {
		return fmt.Errorf("notification event: recipients must not be empty")
	}
	return nil
}

// Marshal 将事件编码为 Outbox 载荷。
func (e *NotificationEvent) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal notification event: %w", err)
	}
	return payload, nil
}

// Attributes 构造随事件发布的 Pub/Sub attributes。
func (e *NotificationEvent) Attributes() map[string]string {
	return map[string]string{
		"event_type":     e.Kind,
		"aggregate_type": AggregateTypePost,
		"aggregate_id":   e.PostID.String(),
		"schema_version": SchemaVersion,
	}
}
