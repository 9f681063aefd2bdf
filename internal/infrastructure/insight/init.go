package insight

import (
	"github.com/bionicotaku/lingo-services-posts/internal/services"
	"github.com/google/wire"
)

// ProviderSet 暴露内容分析客户端构造器，并绑定到服务侧 ContentAnalyzer 契约。
var ProviderSet = wire.NewSet(
	NewAnalyzer,
	wire.Bind(new(services.ContentAnalyzer), new(*Analyzer)),
)
