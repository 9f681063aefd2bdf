// Package server 组装对外 HTTP Server：中间件、健康检查与业务路由。
package server

import (
	stdhttp "net/http"
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/controllers"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metadata"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c configloader.HTTPConfig, handler *controllers.PostHandler, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			metadata.Server(
				metadata.WithPropagatedPrefix("x-md-"),
			),
			logging.Server(logger),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)

	srv.Handle("/healthz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))

	srv.Handle("/readyz", stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		// 预留 readiness 校验钩子：若未来需要检查数据库等依赖，可在此处扩展。
		w.WriteHeader(stdhttp.StatusOK)
	}))

	handler.RegisterRoutes(srv)
	return srv
}
