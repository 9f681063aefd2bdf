package ffmpeg

import (
	"github.com/bionicotaku/lingo-services-posts/internal/services"
	"github.com/google/wire"
)

// ProviderSet 暴露媒体处理适配器构造器，并绑定到服务侧 MediaProcessor 契约。
var ProviderSet = wire.NewSet(
	NewProcessor,
	wire.Bind(new(services.MediaProcessor), new(*Processor)),
)
