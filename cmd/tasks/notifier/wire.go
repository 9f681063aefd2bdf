//go:build wireinject
// +build wireinject

// Package main 为通知发布任务 CLI 提供 Wire 依赖注入定义。
package main

import (
	"context"
	"fmt"

	configloader "github.com/bionicotaku/lingo-services-posts/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/database"
	"github.com/bionicotaku/lingo-services-posts/internal/repositories"
	"github.com/bionicotaku/lingo-services-posts/internal/tasks/notifier"

	"github.com/bionicotaku/lingo-utils/gclog"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireNotifierTask(context.Context, configloader.Params) (*notifierTaskApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		gclog.ProviderSet,
		database.ProviderSet,
		txmanager.ProviderSet,
		repositories.ProviderSet,
		notifier.ProvidePublisher,
		notifier.ProvideTask,
		newNotifierTaskApp,
	))
}

func newNotifierTaskApp(logger log.Logger, task *notifier.Task) (*notifierTaskApp, error) {
	if task == nil {
		return &notifierTaskApp{Logger: logger}, nil
	}
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &notifierTaskApp{
		Task:   task,
		Logger: logger,
	}, nil
}
