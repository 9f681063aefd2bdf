package gcs

import (
	"github.com/bionicotaku/lingo-services-posts/internal/services"
	"github.com/google/wire"
)

// ProviderSet 暴露 GCS 对象存储构造器，并绑定到服务侧 MediaStore 契约。
var ProviderSet = wire.NewSet(
	NewObjectStore,
	wire.Bind(new(services.MediaStore), new(*ObjectStore)),
)
