package runguard

import (
	"github.com/bionicotaku/lingo-services-posts/internal/services"
	"github.com/google/wire"
)

// ProviderSet 暴露 Run 防护构造器，并绑定到服务侧 RunGuard 契约。
var ProviderSet = wire.NewSet(
	NewGuard,
	wire.Bind(new(services.RunGuard), new(*Guard)),
)
