package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/bionicotaku/lingo-services-posts/internal/models/events"
	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/models/vo"
	"github.com/bionicotaku/lingo-services-posts/internal/repositories"

	"github.com/bionicotaku/lingo-utils/txmanager"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 标题长度约束（rune 计数）。
const (
	titleMinLen = 1
	titleMaxLen = 150
)

// ThreadRepo 定义会话树服务需要的持久化行为。
type ThreadRepo interface {
	Create(ctx context.Context, sess txmanager.Session, input repositories.CreatePostInput) (*po.VideoPost, error)
	FindByID(ctx context.Context, sess txmanager.Session, postID uuid.UUID) (*po.VideoPost, error)
	LockParent(ctx context.Context, sess txmanager.Session, parentID uuid.UUID) (*po.VideoPost, error)
	CountLiveReplies(ctx context.Context, sess txmanager.Session, parentID uuid.UUID) (int64, error)
	IncrementReplyCount(ctx context.Context, sess txmanager.Session, parentID uuid.UUID) error
	ListThread(ctx context.Context, sess txmanager.Session, threadID uuid.UUID) ([]*po.VideoPost, error)
	TombstoneThread(ctx context.Context, sess txmanager.Session, threadID uuid.UUID, deletedAt time.Time) (int64, error)
	Update(ctx context.Context, sess txmanager.Session, input repositories.UpdatePostInput) (*po.VideoPost, error)
}

// ThreadOutboxWriter 定义通知事件的 Outbox 写入行为。
type ThreadOutboxWriter interface {
	Enqueue(ctx context.Context, sess txmanager.Session, msg repositories.OutboxMessage) error
}

// ThreadConfig 约束会话树容量：根帖的 Child 上限与 Child 的 Stepchild 上限。
type ThreadConfig struct {
	RootReplyCap  int
	ChildReplyCap int
}

// DefaultThreadConfig 返回产品默认容量。
func DefaultThreadConfig() ThreadConfig {
	return ThreadConfig{RootReplyCap: 60, ChildReplyCap: 10}
}

// CreatePostFields 为创建帖子（根帖或回复）的输入字段。
type CreatePostFields struct {
	CreatorID     uuid.UUID
	Title         string
	Description   *string
	MediaURL      string
	ThumbnailURL  *string
	DurationSecs  float64
	FileSize      int64
	AspectRatio   *string
	Hashtags      []string
	TaggedUserIDs []uuid.UUID
}

// ThreadService 实现会话树的 CRUD 与结构不变式约束。
type ThreadService struct {
	repo      ThreadRepo
	outbox    ThreadOutboxWriter
	txManager txmanager.Manager
	cfg       ThreadConfig
	log       *log.Helper
	now       func() time.Time
}

// NewThreadService 构造 ThreadService。
func NewThreadService(repo ThreadRepo, outbox ThreadOutboxWriter, tx txmanager.Manager, cfg ThreadConfig, logger log.Logger) *ThreadService {
	if cfg.RootReplyCap <= 0 || cfg.ChildReplyCap <= 0 {
		cfg = DefaultThreadConfig()
	}
	return &ThreadService{
		repo:      repo,
		outbox:    outbox,
		txManager: tx,
		cfg:       cfg,
		log:       log.NewHelper(logger),
		now:       time.Now,
	}
}

func validateCreateFields(fields CreatePostFields) error {
	if fields.CreatorID == uuid.Nil {
		return ValidationError("creator id is required")
	}
	if n := utf8.RuneCountInString(fields.Title); n < titleMinLen || n > titleMaxLen {
		return ValidationError(fmt.Sprintf("title length must be within [%d, %d]", titleMinLen, titleMaxLen))
	}
	if fields.MediaURL == "" {
		return ValidationError("media url is required")
	}
	if fields.DurationSecs <= 0 {
		return ValidationError("duration must be positive")
	}
	if fields.FileSize <= 0 {
		return ValidationError("file size must be positive")
	}
	return nil
}

// CreateRoot 创建会话根帖：depth = 0，threadId = 自身 ID，parentId 为空。
func (s *ThreadService) CreateRoot(ctx context.Context, fields CreatePostFields) (*po.VideoPost, error) {
	if err := validateCreateFields(fields); err != nil {
		return nil, err
	}

	postID := uuid.New()
	var created *po.VideoPost
	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		post, repoErr := s.repo.Create(txCtx, sess, repositories.CreatePostInput{
			PostID:       postID,
			CreatorID:    fields.CreatorID,
			ThreadID:     postID,
			ParentID:     nil,
			Depth:        po.DepthThread,
			Title:        fields.Title,
			Description:  fields.Description,
			MediaURL:     fields.MediaURL,
			ThumbnailURL: fields.ThumbnailURL,
			DurationSecs: fields.DurationSecs,
			FileSize:     fields.FileSize,
			AspectRatio:  fields.AspectRatio,
			Hashtags:     fields.Hashtags,
		})
		if repoErr != nil {
			return repoErr
		}
		created = post
		return s.enqueueMentions(txCtx, sess, post, fields.TaggedUserIDs)
	})
	if err != nil {
		return nil, s.mapError(ctx, err, "create root post")
	}

	s.log.WithContext(ctx).Infof("CreateRoot: post_id=%s creator=%s", created.PostID, created.CreatorID)
	return created, nil
}

// CreateReply 创建一条回复（stitch）。
//
// 父帖行锁、层级与容量校验、子帖插入、父帖回复计数自增以及通知事件
// 写入全部发生在同一事务内：对同一父帖的并发回复在行锁上串行化，
// 回复数上限为严格上限。
func (s *ThreadService) CreateReply(ctx context.Context, parentID uuid.UUID, fields CreatePostFields) (*po.VideoPost, error) {
	if err := validateCreateFields(fields); err != nil {
		return nil, err
	}
	if parentID == uuid.Nil {
		return nil, ValidationError("parent id is required")
	}

	var created *po.VideoPost
	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		parent, repoErr := s.repo.LockParent(txCtx, sess, parentID)
		if repoErr != nil {
			return repoErr
		}

		newDepth := parent.Depth + 1
		if newDepth > po.MaxThreadDepth {
			return CapacityError("max thread depth exceeded: stepchild posts cannot be replied to")
		}

		cap := s.cfg.ChildReplyCap
		if parent.Depth == po.DepthThread {
			cap = s.cfg.RootReplyCap
		}
		count, repoErr := s.repo.CountLiveReplies(txCtx, sess, parent.PostID)
		if repoErr != nil {
			return repoErr
		}
		if count >= int64(cap) {
			return CapacityError(fmt.Sprintf("reply cap reached: %d replies allowed on this post", cap))
		}

		post, repoErr := s.repo.Create(txCtx, sess, repositories.CreatePostInput{
			PostID:       uuid.New(),
			CreatorID:    fields.CreatorID,
			ThreadID:     parent.ThreadID,
			ParentID:     &parent.PostID,
			Depth:        newDepth,
			Title:        fields.Title,
			Description:  fields.Description,
			MediaURL:     fields.MediaURL,
			ThumbnailURL: fields.ThumbnailURL,
			DurationSecs: fields.DurationSecs,
			FileSize:     fields.FileSize,
			AspectRatio:  fields.AspectRatio,
			Hashtags:     fields.Hashtags,
		})
		if repoErr != nil {
			return repoErr
		}
		if repoErr := s.repo.IncrementReplyCount(txCtx, sess, parent.PostID); repoErr != nil {
			return repoErr
		}
		created = post

		if err := s.enqueueStitchNotification(txCtx, sess, parent, post); err != nil {
			return err
		}
		return s.enqueueMentions(txCtx, sess, post, fields.TaggedUserIDs)
	})
	if err != nil {
		return nil, s.mapError(ctx, err, "create reply")
	}

	s.log.WithContext(ctx).Infof("CreateReply: post_id=%s parent=%s depth=%d", created.PostID, parentID, created.Depth)
	return created, nil
}

// enqueueStitchNotification 在当前事务内解析接收者并写入会话通知事件。
func (s *ThreadService) enqueueStitchNotification(ctx context.Context, sess txmanager.Session, parent, created *po.VideoPost) error {
	posts, err := s.repo.ListThread(ctx, sess, parent.ThreadID)
	if err != nil {
		return err
	}

	var root *po.VideoPost
	participants := make([]uuid.UUID, 0, len(posts))
	for _, p := range posts {
		if p.IsRoot() {
			root = p
		}
		participants = append(participants, p.CreatorID)
	}

	recipients := ResolveRecipients(ThreadPosition{
		Parent:       parent,
		Root:         root,
		Participants: participants,
		NewDepth:     created.Depth,
	}, created.CreatorID)
	if len(recipients) == 0 {
		return nil
	}

	return s.enqueueEvent(ctx, sess, &events.NotificationEvent{
		EventID:    uuid.New(),
		Kind:       events.TypeStitchCreated,
		PostID:     created.PostID,
		ThreadID:   created.ThreadID,
		ParentID:   created.ParentID,
		Depth:      int16(created.Depth),
		ActorID:    created.CreatorID,
		Recipients: recipients,
		Title:      created.Title,
		OccurredAt: created.CreatedAt.UTC(),
	})
}

// enqueueMentions 为显式标记的用户写入提及通知事件。
func (s *ThreadService) enqueueMentions(ctx context.Context, sess txmanager.Session, created *po.VideoPost, tagged []uuid.UUID) error {
	targets := ResolveMentions(tagged, created.CreatorID)
	if len(targets) == 0 {
		return nil
	}
	return s.enqueueEvent(ctx, sess, &events.NotificationEvent{
		EventID:    uuid.New(),
		Kind:       events.TypeMentionCreated,
		PostID:     created.PostID,
		ThreadID:   created.ThreadID,
		ParentID:   created.ParentID,
		Depth:      int16(created.Depth),
		ActorID:    created.CreatorID,
		Recipients: targets,
		Title:      created.Title,
		OccurredAt: created.CreatedAt.UTC(),
	})
}

func (s *ThreadService) enqueueEvent(ctx context.Context, sess txmanager.Session, evt *events.NotificationEvent) error {
	payload, err := evt.Marshal()
	if err != nil {
		return fmt.Errorf("build notification event: %w", err)
	}
	occurredAt := evt.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now().UTC()
	}
	return s.outbox.Enqueue(ctx, sess, repositories.OutboxMessage{
		EventID:       evt.EventID,
		AggregateType: events.AggregateTypePost,
		AggregateID:   evt.PostID,
		EventType:     evt.Kind,
		Payload:       payload,
		Attributes:    evt.Attributes(),
		AvailableAt:   occurredAt,
	})
}

// GetPost 返回单条存活帖子。
func (s *ThreadService) GetPost(ctx context.Context, postID uuid.UUID) (*po.VideoPost, error) {
	post, err := s.repo.FindByID(ctx, nil, postID)
	if err != nil {
		return nil, s.mapError(ctx, err, "get post")
	}
	return post, nil
}

// GetTree 返回整棵会话树，按层级分组。
// 空集合 → POST_NOT_FOUND；非空但缺失根帖 → INVALID_HIERARCHY（防御性检查，
// 理论上不可能发生，但必须被检出而非静默容忍）。
func (s *ThreadService) GetTree(ctx context.Context, threadID uuid.UUID) (*vo.ThreadTree, error) {
	posts, err := s.repo.ListThread(ctx, nil, threadID)
	if err != nil {
		return nil, s.mapError(ctx, err, "get tree")
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}

	tree := &vo.ThreadTree{}
	nodes := make(map[uuid.UUID]*vo.ThreadNode)
	for _, p := range posts {
		switch p.Depth {
		case po.DepthThread:
			tree.Root = vo.NewPostDetail(p)
		case po.DepthChild:
			node := &vo.ThreadNode{Post: vo.NewPostDetail(p)}
			nodes[p.PostID] = node
			tree.Children = append(tree.Children, node)
		case po.DepthStepchild:
			if p.ParentID == nil {
				s.log.WithContext(ctx).Warnf("stepchild without parent: post_id=%s", p.PostID)
				continue
			}
			node, ok := nodes[*p.ParentID]
			if !ok {
				s.log.WithContext(ctx).Warnf("stepchild with unknown parent: post_id=%s parent=%s", p.PostID, *p.ParentID)
				continue
			}
			node.Replies = append(node.Replies, vo.NewPostDetail(p))
		}
	}
	if tree.Root == nil {
		s.log.WithContext(ctx).Errorf("thread without root: thread_id=%s posts=%d", threadID, len(posts))
		return nil, ErrInvalidHierarchy
	}
	return tree, nil
}

// DeleteTree 由根帖创建者对整棵会话树打墓碑，单事务级联。
func (s *ThreadService) DeleteTree(ctx context.Context, threadID, requesterID uuid.UUID) error {
	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		posts, repoErr := s.repo.ListThread(txCtx, sess, threadID)
		if repoErr != nil {
			return repoErr
		}
		if len(posts) == 0 {
			return repositories.ErrPostNotFound
		}

		var root *po.VideoPost
		for _, p := range posts {
			if p.IsRoot() {
				root = p
				break
			}
		}
		if root == nil {
			return ErrInvalidHierarchy
		}
		if root.CreatorID != requesterID {
			return PermissionError("only the thread creator can delete the thread")
		}

		affected, repoErr := s.repo.TombstoneThread(txCtx, sess, threadID, s.now().UTC())
		if repoErr != nil {
			return repoErr
		}
		s.log.WithContext(txCtx).Infof("DeleteTree: thread_id=%s tombstoned=%d", threadID, affected)
		return nil
	})
	if err != nil {
		return s.mapError(ctx, err, "delete tree")
	}
	return nil
}

// UpdatePostFields 为字段级合并更新的输入。
type UpdatePostFields struct {
	Title                *string
	Description          *string
	ThumbnailURL         *string
	Hashtags             []string
	QualityScore         *float64
	DiscoverabilityScore *float64
}

// Update 字段级合并更新帖子元数据，并刷新 updated_at。
func (s *ThreadService) Update(ctx context.Context, postID uuid.UUID, fields UpdatePostFields) (*po.VideoPost, error) {
	if fields.Title != nil {
		if n := utf8.RuneCountInString(*fields.Title); n < titleMinLen || n > titleMaxLen {
			return nil, ValidationError(fmt.Sprintf("title length must be within [%d, %d]", titleMinLen, titleMaxLen))
		}
	}

	var updated *po.VideoPost
	err := s.txManager.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		post, repoErr := s.repo.Update(txCtx, sess, repositories.UpdatePostInput{
			PostID:               postID,
			Title:                fields.Title,
			Description:          fields.Description,
			ThumbnailURL:         fields.ThumbnailURL,
			Hashtags:             fields.Hashtags,
			QualityScore:         fields.QualityScore,
			DiscoverabilityScore: fields.DiscoverabilityScore,
		})
		if repoErr != nil {
			return repoErr
		}
		updated = post
		return nil
	})
	if err != nil {
		return nil, s.mapError(ctx, err, "update post")
	}
	return updated, nil
}

// mapError 将仓储与事务层错误映射为服务错误；已是业务错误的原样透传。
func (s *ThreadService) mapError(ctx context.Context, err error, op string) error {
	if stderrors.Is(err, repositories.ErrPostNotFound) {
		return ErrPostNotFound
	}
	var ke *kerrors.Error
	if stderrors.As(err, &ke) {
		return ke
	}
	s.log.WithContext(ctx).Errorf("%s failed: err=%v", op, err)
	return UpstreamError(fmt.Sprintf("failed to %s", op), err)
}
