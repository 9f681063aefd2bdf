//go:build wireinject
// +build wireinject

// Package main 为 HTTP 服务入口提供 Wire 依赖注入定义。
package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-posts/internal/controllers"
	configloader "github.com/bionicotaku/lingo-services-posts/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/ffmpeg"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/gcs"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/insight"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/runguard"
	"github.com/bionicotaku/lingo-services-posts/internal/repositories"
	"github.com/bionicotaku/lingo-services-posts/internal/server"
	"github.com/bionicotaku/lingo-services-posts/internal/services"

	"github.com/bionicotaku/lingo-utils/gclog"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

// wireApp init kratos application.
func wireApp(context.Context, configloader.Params) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		gclog.ProviderSet,
		database.ProviderSet,
		txmanager.ProviderSet,
		repositories.ProviderSet,
		services.ProviderSet,
		ffmpeg.ProviderSet,
		insight.ProviderSet,
		gcs.ProviderSet,
		runguard.ProviderSet,
		controllers.ProviderSet,
		server.ProviderSet,
		newApp,
	))
}
