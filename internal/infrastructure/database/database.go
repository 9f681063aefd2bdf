// Package database 负责 PostgreSQL 连接池的初始化与生命周期管理。
// 包括：连接池配置、健康检查、优雅关闭等功能。
package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/infrastructure/configloader"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPgxPool 创建并配置 pgxpool.Pool。
//
// 职责：
//  1. 解析 DSN 并创建连接池配置
//  2. 应用连接池参数（最大/最小连接数、连接生命周期）
//  3. 集成 Kratos Logger（查询失败时记录错误）
//  4. 设置默认 Schema（search_path）
//  5. 启动时健康检查（Ping + 版本查询）
//  6. 返回清理函数（用于 Wire cleanup）
func NewPgxPool(ctx context.Context, cfg configloader.PostgresConfig, logger log.Logger) (*pgxpool.Pool, func(), error) {
	helper := log.NewHelper(logger)

	if cfg.DSN == "" {
		return nil, nil, fmt.Errorf("postgres DSN is required (set DATABASE_URL)")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MinOpenConns >= 0 {
		poolConfig.MinConns = cfg.MinOpenConns
	}
	if d := durationOf(cfg.MaxConnLifetime); d > 0 {
		poolConfig.MaxConnLifetime = d
	}
	if d := durationOf(cfg.MaxConnIdleTime); d > 0 {
		poolConfig.MaxConnIdleTime = d
	}
	if d := durationOf(cfg.HealthCheckPeriod); d > 0 {
		poolConfig.HealthCheckPeriod = d
	}

	poolConfig.ConnConfig.Tracer = &pgxLogger{helper: helper}

	if schema := cfg.Schema; schema != "" {
		// 优先级：配置 schema > DSN 中的 search_path
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema))
			if err != nil {
				return fmt.Errorf("failed to set search_path: %w", err)
			}
			return nil
		}
	}

	if !cfg.EnablePreparedStatements {
		// 连接池代理（如 Supabase Pooler）模式必须禁用 prepared statements
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := healthCheck(ctx, pool, helper); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres health check failed: %w", err)
	}

	helper.Infof(
		"postgres pool created: dsn=%s max_conns=%d min_conns=%d schema=%s prepared_statements=%v",
		sanitizeDSN(cfg.DSN),
		poolConfig.MaxConns,
		poolConfig.MinConns,
		cfg.Schema,
		cfg.EnablePreparedStatements,
	)

	cleanup := func() {
		helper.Info("closing postgres pool")
		pool.Close()
	}

	return pool, cleanup, nil
}

func durationOf(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// healthCheck 执行数据库健康检查：Ping 连接 + 查询 PostgreSQL 版本。
func healthCheck(ctx context.Context, pool *pgxpool.Pool, helper *log.Helper) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(healthCtx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var version string
	err := pool.QueryRow(healthCtx, "SELECT version()").Scan(&version)
	if err != nil {
		return fmt.Errorf("version query failed: %w", err)
	}

	helper.Infof("database health check passed: version=%s", truncateVersion(version))
	return nil
}

// sanitizeDSN 对 DSN 进行脱敏处理，隐藏密码。
func sanitizeDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(username, "***")
		}
	}

	return parsed.String()
}

// truncateVersion 截断 PostgreSQL 版本字符串（避免日志过长）。
func truncateVersion(version string) string {
	if idx := strings.Index(version, "("); idx != -1 {
		return strings.TrimSpace(version[:idx])
	}
	if len(version) > 100 {
		return version[:100] + "..."
	}
	return version
}

// pgxLogger 是 pgx.QueryTracer 的实现，用于将 pgx 日志转发到 Kratos Logger。
// 仅在查询失败时记录错误，避免日志噪音。
type pgxLogger struct {
	helper *log.Helper
}

// TraceQueryStart 实现 pgx.QueryTracer 接口（查询开始时调用）。
func (l *pgxLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	return ctx
}

// TraceQueryEnd 实现 pgx.QueryTracer 接口（查询结束时调用）。
// 不记录 SQL 文本，避免敏感数据进入日志。
func (l *pgxLogger) TraceQueryEnd(_ context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		l.helper.Errorf(
			"postgres query failed: error=%v command_tag=%s",
			data.Err,
			data.CommandTag.String(),
		)
	}
}
