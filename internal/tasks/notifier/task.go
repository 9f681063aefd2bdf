// Package notifier 实现通知事件的 Outbox 发布任务：
// 周期性认领到期事件，发布到 Pub/Sub，成功标记、失败按指数退避重新调度。
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/repositories"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config 控制发布任务的节奏与退避上限。
type Config struct {
	PollInterval time.Duration // 轮询间隔，默认 2s
	BatchSize    int           // 单轮最多认领条数，默认 100
	MaxBackoff   time.Duration // 失败重新调度的退避上限，默认 5m
}

// 退避基数：第 n 次失败后等待 baseBackoff * 2^n，封顶 MaxBackoff。
const baseBackoff = 10 * time.Second

// Task 为 Outbox 发布任务。认领、发布、标记在同一事务窗口内完成：
// 行锁保证同一事件不会被多个实例同时发布（at-least-once 语义，
// 消费侧以 event_id 去重）。
type Task struct {
	repo      *repositories.OutboxRepository
	publisher gcpubsub.Publisher
	txManager txmanager.Manager
	cfg       Config
	log       *log.Helper
	now       func() time.Time

	published metric.Int64Counter
	failures  metric.Int64Counter
}

// NewTask 构造发布任务并注册指标。
func NewTask(
	repo *repositories.OutboxRepository,
	publisher gcpubsub.Publisher,
	tx txmanager.Manager,
	cfg Config,
	logger log.Logger,
) (*Task, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}

	meter := otel.GetMeterProvider().Meter("lingo.posts.notifier")
	published, err := meter.Int64Counter("notifier_events_published_total",
		metric.WithDescription("Notification events published to Pub/Sub"))
	if err != nil {
		return nil, fmt.Errorf("create notifier_events_published_total counter: %w", err)
	}
	failures, err := meter.Int64Counter("notifier_publish_failures_total",
		metric.WithDescription("Notification events that failed to publish and were rescheduled"))
	if err != nil {
		return nil, fmt.Errorf("create notifier_publish_failures_total counter: %w", err)
	}

	return &Task{
		repo:      repo,
		publisher: publisher,
		txManager: tx,
		cfg:       cfg,
		log:       log.NewHelper(logger),
		now:       time.Now,
		published: published,
		failures:  failures,
	}, nil
}

// Run 以固定间隔轮询 Outbox，直到上下文取消。
func (t *Task) Run(ctx context.Context) error {
	t.log.Infof("notifier started: poll_interval=%s batch_size=%d", t.cfg.PollInterval, t.cfg.BatchSize)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := t.drain(ctx); err != nil {
			t.log.WithContext(ctx).Errorf("notifier drain failed: %v", err)
		}
		select {
		case <-ctx.Done():
			t.log.Info("notifier stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain 处理一轮：认领到期事件，逐条发布并更新状态。
func (t *Task) drain(ctx context.Context) error {
	return t.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		events, err := t.repo.ClaimPending(txCtx, sess, t.now(), t.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, evt := range events {
			t.dispatch(txCtx, sess, evt)
		}
		return nil
	})
}

// dispatch 发布单个事件。发布失败只影响该事件的调度，不中断本轮其余事件。
func (t *Task) dispatch(ctx context.Context, sess txmanager.Session, evt repositories.OutboxEvent) {
	attrs := make(map[string]string, len(evt.Attributes)+1)
	for k, v := range evt.Attributes {
		attrs[k] = v
	}
	attrs["event_id"] = evt.EventID.String()

	_, err := t.publisher.Publish(ctx, gcpubsub.Message{
		Data:       evt.Payload,
		Attributes: attrs,
	})
	if err != nil {
		t.failures.Add(ctx, 1)
		next := t.now().Add(t.backoff(evt.DeliveryAttempts))
		t.log.WithContext(ctx).Warnf("publish failed, rescheduled: event_id=%s type=%s attempts=%d err=%v",
			evt.EventID, evt.EventType, evt.DeliveryAttempts+1, err)
		if rErr := t.repo.Reschedule(ctx, sess, evt.EventID, next, err.Error()); rErr != nil {
			t.log.WithContext(ctx).Errorf("reschedule failed: event_id=%s err=%v", evt.EventID, rErr)
		}
		return
	}

	t.published.Add(ctx, 1)
	if mErr := t.repo.MarkPublished(ctx, sess, evt.EventID, t.now()); mErr != nil {
		t.log.WithContext(ctx).Errorf("mark published failed: event_id=%s err=%v", evt.EventID, mErr)
	}
}

// backoff 计算第 attempts+1 次尝试前的等待时间。
func (t *Task) backoff(attempts int32) time.Duration {
	d := baseBackoff
	for i := int32(0); i < attempts && d < t.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > t.cfg.MaxBackoff {
		return t.cfg.MaxBackoff
	}
	return d
}
