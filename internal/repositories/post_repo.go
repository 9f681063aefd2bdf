// Package repositories 实现数据访问层，基于 pgx 的手写 SQL 封装 posts 模式下各表。
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPostNotFound 表示帖子不存在或已墓碑化。
var ErrPostNotFound = errors.New("post not found")

// dbConn 抽象连接池与事务的公共查询面，便于随 Session 切换。
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostRepository 封装 posts.video_posts 表的访问逻辑。
type PostRepository struct {
	db  *pgxpool.Pool
	log *log.Helper
}

// NewPostRepository 构造 PostRepository。
func NewPostRepository(db *pgxpool.Pool, logger log.Logger) *PostRepository {
	return &PostRepository{
		db:  db,
		log: log.NewHelper(logger),
	}
}

// conn 默认使用连接池；若处于事务，则切换到 Session 绑定的 pgx.Tx。
func (r *PostRepository) conn(sess txmanager.Session) dbConn {
	if sess != nil {
		return sess.Tx()
	}
	return r.db
}

// postColumns 为所有查询共用的列清单，与 scanPost 严格对应。
const postColumns = `post_id, creator_id, thread_id, parent_id, depth,
	title, description, media_url, thumbnail_url, duration_secs, file_size, aspect_ratio, hashtags,
	like_count, dislike_count, reply_count, share_count, view_count,
	quality_score, discoverability_score,
	created_at, updated_at, deleted_at`

func scanPost(row pgx.Row) (*po.VideoPost, error) {
	var p po.VideoPost
	err := row.Scan(
		&p.PostID, &p.CreatorID, &p.ThreadID, &p.ParentID, &p.Depth,
		&p.Title, &p.Description, &p.MediaURL, &p.ThumbnailURL, &p.DurationSecs, &p.FileSize, &p.AspectRatio, &p.Hashtags,
		&p.LikeCount, &p.DislikeCount, &p.ReplyCount, &p.ShareCount, &p.ViewCount,
		&p.QualityScore, &p.DiscoverabilityScore,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePostInput 描述插入新帖子所需的字段。
type CreatePostInput struct {
	PostID       uuid.UUID
	CreatorID    uuid.UUID
	ThreadID     uuid.UUID
	ParentID     *uuid.UUID
	Depth        po.ThreadDepth
	Title        string
	Description  *string
	MediaURL     string
	ThumbnailURL *string
	DurationSecs float64
	FileSize     int64
	AspectRatio  *string
	Hashtags     []string
}

// Create 插入一条帖子记录并返回完整实体。
func (r *PostRepository) Create(ctx context.Context, sess txmanager.Session, input CreatePostInput) (*po.VideoPost, error) {
	const sql = `INSERT INTO posts.video_posts (
		post_id, creator_id, thread_id, parent_id, depth,
		title, description, media_url, thumbnail_url, duration_secs, file_size, aspect_ratio, hashtags
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	RETURNING ` + postColumns

	row := r.conn(sess).QueryRow(ctx, sql,
		input.PostID, input.CreatorID, input.ThreadID, input.ParentID, input.Depth,
		input.Title, input.Description, input.MediaURL, input.ThumbnailURL,
		input.DurationSecs, input.FileSize, input.AspectRatio, input.Hashtags,
	)
	post, err := scanPost(row)
	if err != nil {
		r.log.WithContext(ctx).Errorf("insert post failed: post_id=%s err=%v", input.PostID, err)
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return post, nil
}

// FindByID 按主键查询存活帖子。
//
// 错误处理：
//   - pgx.ErrNoRows → ErrPostNotFound
//   - 其他数据库错误原样返回
func (r *PostRepository) FindByID(ctx context.Context, sess txmanager.Session, postID uuid.UUID) (*po.VideoPost, error) {
	sql := `SELECT ` + postColumns + ` FROM posts.video_posts WHERE post_id = $1 AND deleted_at IS NULL`
	post, err := scanPost(r.conn(sess).QueryRow(ctx, sql, postID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return post, nil
}

// LockParent 在当前事务内对父帖加行锁，使同一父帖的并发回复串行化。
// 容量校验与子帖插入因此落在同一原子窗口内，严格执行回复数上限。
func (r *PostRepository) LockParent(ctx context.Context, sess txmanager.Session, parentID uuid.UUID) (*po.VideoPost, error) {
	sql := `SELECT ` + postColumns + ` FROM posts.video_posts WHERE post_id = $1 AND deleted_at IS NULL FOR UPDATE`
	post, err := scanPost(r.conn(sess).QueryRow(ctx, sql, parentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("lock parent post: %w", err)
	}
	return post, nil
}

// CountLiveReplies 统计指定父帖的存活直接回复数。
func (r *PostRepository) CountLiveReplies(ctx context.Context, sess txmanager.Session, parentID uuid.UUID) (int64, error) {
	const sql = `SELECT count(*) FROM posts.video_posts WHERE parent_id = $1 AND deleted_at IS NULL`
	var count int64
	if err := r.conn(sess).QueryRow(ctx, sql, parentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return count, nil
}

// IncrementReplyCount 自增父帖的回复计数，与子帖插入处于同一事务。
func (r *PostRepository) IncrementReplyCount(ctx context.Context, sess txmanager.Session, parentID uuid.UUID) error {
	const sql = `UPDATE posts.video_posts SET reply_count = reply_count + 1, updated_at = now() WHERE post_id = $1 AND deleted_at IS NULL`
	tag, err := r.conn(sess).Exec(ctx, sql, parentID)
	if err != nil {
		return fmt.Errorf("increment reply count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// IncrementViewCount 自增播放计数（服务端单调自增，调用方在别处）。
func (r *PostRepository) IncrementViewCount(ctx context.Context, sess txmanager.Session, postID uuid.UUID) error {
	const sql = `UPDATE posts.video_posts SET view_count = view_count + 1 WHERE post_id = $1 AND deleted_at IS NULL`
	tag, err := r.conn(sess).Exec(ctx, sql, postID)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// ListThread 返回会话内全部存活帖子，按层级与创建时间排序。
func (r *PostRepository) ListThread(ctx context.Context, sess txmanager.Session, threadID uuid.UUID) ([]*po.VideoPost, error) {
	sql := `SELECT ` + postColumns + ` FROM posts.video_posts WHERE thread_id = $1 AND deleted_at IS NULL ORDER BY depth, created_at`
	rows, err := r.conn(sess).Query(ctx, sql, threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer rows.Close()

	var posts []*po.VideoPost
	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan thread post: %w", scanErr)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread posts: %w", err)
	}
	return posts, nil
}

// TombstoneThread 对整棵会话树打墓碑标记（软删除），返回受影响行数。
// 不做物理删除。
func (r *PostRepository) TombstoneThread(ctx context.Context, sess txmanager.Session, threadID uuid.UUID, deletedAt time.Time) (int64, error) {
	const sql = `UPDATE posts.video_posts SET deleted_at = $2, updated_at = $2 WHERE thread_id = $1 AND deleted_at IS NULL`
	tag, err := r.conn(sess).Exec(ctx, sql, threadID, deletedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("tombstone thread: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdatePostInput 描述字段级合并更新；nil 字段保持原值。
type UpdatePostInput struct {
	PostID               uuid.UUID
	Title                *string
	Description          *string
	ThumbnailURL         *string
	Hashtags             []string
	QualityScore         *float64
	DiscoverabilityScore *float64
}

// Update 执行字段级合并更新，并无条件刷新 updated_at。
func (r *PostRepository) Update(ctx context.Context, sess txmanager.Session, input UpdatePostInput) (*po.VideoPost, error) {
	sql := `UPDATE posts.video_posts SET
		title = COALESCE($2, title),
		description = COALESCE($3, description),
		thumbnail_url = COALESCE($4, thumbnail_url),
		hashtags = COALESCE($5, hashtags),
		quality_score = COALESCE($6, quality_score),
		discoverability_score = COALESCE($7, discoverability_score),
		updated_at = now()
	WHERE post_id = $1 AND deleted_at IS NULL
	RETURNING ` + postColumns

	row := r.conn(sess).QueryRow(ctx, sql,
		input.PostID, input.Title, input.Description, input.ThumbnailURL,
		input.Hashtags, input.QualityScore, input.DiscoverabilityScore,
	)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		r.log.WithContext(ctx).Errorf("update post failed: post_id=%s err=%v", input.PostID, err)
		return nil, fmt.Errorf("update post: %w", err)
	}
	return post, nil
}
