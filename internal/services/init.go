// Package services 实现业务逻辑层：流水线编排、会话树约束与通知解析。
package services

import (
	"github.com/bionicotaku/lingo-services-posts/internal/repositories"
	"github.com/google/wire"
)

// ProviderSet 暴露 Service 层构造函数，并把仓储实现绑定到服务侧接口。
var ProviderSet = wire.NewSet(
	NewThreadService,
	NewPipelineService,
	wire.Bind(new(ThreadRepo), new(*repositories.PostRepository)),
	wire.Bind(new(ThreadOutboxWriter), new(*repositories.OutboxRepository)),
)
