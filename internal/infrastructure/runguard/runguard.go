// Package runguard 基于 Redis 实现 actor 维度的重复 Run 防护。
package runguard

import (
	"context"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/services"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config 描述 Redis 连接与锁参数。
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // actor 锁的过期时间，防止崩溃后永久锁死
}

// Guard 实现 services.RunGuard：SET NX + TTL 获取 actor 锁，
// 释放时校验持有者 token，过期兜底由 Redis TTL 保证。
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	log    *log.Helper
}

// releaseScript 仅在锁仍由当前 token 持有时删除，避免释放他人的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewGuard 构造 Guard 并验证 Redis 连通性，返回清理函数。
func NewGuard(ctx context.Context, cfg Config, logger log.Logger) (*Guard, func(), error) {
	if cfg.Addr == "" {
		return nil, nil, fmt.Errorf("runguard: redis addr is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("runguard: redis ping: %w", err)
	}

	helper := log.NewHelper(logger)
	guard := &Guard{
		client: client,
		ttl:    cfg.TTL,
		log:    helper,
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close redis client: %v", err)
		}
	}
	return guard, cleanup, nil
}

func guardKey(actorID uuid.UUID) string {
	return "posts:run:" + actorID.String()
}

// Acquire 获取 actor 级 Run 锁。已有进行中的 Run 时返回 ErrAlreadyInProgress。
func (g *Guard) Acquire(ctx context.Context, actorID uuid.UUID) (func(), error) {
	key := guardKey(actorID)
	token := uuid.New().String()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("runguard: acquire: %w", err)
	}
	if !ok {
		return nil, services.ErrAlreadyInProgress
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			g.log.Warnf("runguard release failed: actor=%s err=%v", actorID, err)
		}
	}
	return release, nil
}
