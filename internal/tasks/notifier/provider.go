package notifier

import (
	"context"

	"github.com/bionicotaku/lingo-services-posts/internal/repositories"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

// ProvidePublisher 装配 Pub/Sub 组件并暴露发布端。
func ProvidePublisher(ctx context.Context, cfg gcpubsub.Config, logger log.Logger) (gcpubsub.Publisher, func(), error) {
	component, cleanup, err := gcpubsub.NewComponent(ctx, cfg, gcpubsub.Dependencies{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return gcpubsub.ProvidePublisher(component), cleanup, nil
}

// ProvideTask 装配 Outbox 发布任务。
// 未配置 Topic 时返回 nil，由入口进程判断后降级退出。
func ProvideTask(
	repo *repositories.OutboxRepository,
	publisher gcpubsub.Publisher,
	pubCfg gcpubsub.Config,
	tx txmanager.Manager,
	cfg Config,
	logger log.Logger,
) *Task {
	if repo == nil || logger == nil {
		return nil
	}
	if pubCfg.TopicID == "" {
		return nil
	}

	task, err := NewTask(repo, publisher, tx, cfg, logger)
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init notifier task failed", "error", err)
		return nil
	}
	return task
}
