// Package main 提供通知发布任务的独立进程入口，便于后台单独运行。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/bionicotaku/lingo-services-posts/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-posts/internal/tasks/notifier"

	"github.com/go-kratos/kratos/v2/log"

	_ "go.uber.org/automaxprocs"
)

type notifierTaskApp struct {
	Task   *notifier.Task
	Logger log.Logger
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireNotifierTask(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	logger := app.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	helper := log.NewHelper(logger)

	if app.Task == nil {
		helper.Warn("notifier task disabled (missing messaging.topic_id configuration)")
		return
	}

	helper.Info("starting notification outbox publisher")

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Task.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("notifier task stopped unexpectedly: %v", err)
		os.Exit(1)
	}

	helper.Info("notifier task stopped")
}
