package repositories_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/bionicotaku/lingo-services-posts/internal/models/po"
	"github.com/bionicotaku/lingo-services-posts/internal/services"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func replyFields(creator uuid.UUID, title string) services.CreatePostFields {
	return services.CreatePostFields{
		CreatorID:    creator,
		Title:        title,
		MediaURL:     "https://cdn.test/clip.mp4",
		DurationSecs: 12,
		FileSize:     1 << 19,
	}
}

// 回复数上限为严格上限：对同一父帖的并发回复在父帖行锁上串行化，
// 超卖不可能发生，落库的回复数与 reply_count 恰好等于上限。
func TestThreadServiceConcurrentRepliesRespectCap(t *testing.T) {
	ctx := context.Background()
	_, postRepo, outboxRepo, txMgr := setupRepos(ctx, t)

	cfg := services.ThreadConfig{RootReplyCap: 4, ChildReplyCap: 2}
	svc := services.NewThreadService(postRepo, outboxRepo, txMgr, cfg, log.NewStdLogger(io.Discard))

	root, err := svc.CreateRoot(ctx, replyFields(uuid.New(), "contended root"))
	require.NoError(t, err)

	const attempts = 12
	var accepted, capped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, replyErr := svc.CreateReply(gctx, root.PostID, replyFields(uuid.New(), "contended reply"))
			switch {
			case replyErr == nil:
				accepted.Add(1)
				return nil
			case kerrors.FromError(replyErr).Reason == "CAPACITY_EXCEEDED":
				capped.Add(1)
				return nil
			default:
				return replyErr
			}
		})
	}
	require.NoError(t, g.Wait())

	require.EqualValues(t, cfg.RootReplyCap, accepted.Load())
	require.EqualValues(t, attempts-cfg.RootReplyCap, capped.Load())

	count, err := postRepo.CountLiveReplies(ctx, nil, root.PostID)
	require.NoError(t, err)
	require.EqualValues(t, cfg.RootReplyCap, count)

	refreshed, err := postRepo.FindByID(ctx, nil, root.PostID)
	require.NoError(t, err)
	require.EqualValues(t, cfg.RootReplyCap, refreshed.ReplyCount)
}

// Child 层的并发回复同样受限，且并发下产生的任何帖子深度不超过 2。
func TestThreadServiceConcurrentChildRepliesAndDepth(t *testing.T) {
	ctx := context.Background()
	_, postRepo, outboxRepo, txMgr := setupRepos(ctx, t)

	cfg := services.ThreadConfig{RootReplyCap: 4, ChildReplyCap: 2}
	svc := services.NewThreadService(postRepo, outboxRepo, txMgr, cfg, log.NewStdLogger(io.Discard))

	root, err := svc.CreateRoot(ctx, replyFields(uuid.New(), "root"))
	require.NoError(t, err)
	child, err := svc.CreateReply(ctx, root.PostID, replyFields(uuid.New(), "child"))
	require.NoError(t, err)

	const attempts = 8
	var accepted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, replyErr := svc.CreateReply(gctx, child.PostID, replyFields(uuid.New(), "stepchild"))
			if replyErr == nil {
				accepted.Add(1)
				return nil
			}
			if kerrors.FromError(replyErr).Reason == "CAPACITY_EXCEEDED" {
				return nil
			}
			return replyErr
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, cfg.ChildReplyCap, accepted.Load())

	posts, err := postRepo.ListThread(ctx, nil, root.ThreadID)
	require.NoError(t, err)
	require.Len(t, posts, 1+1+cfg.ChildReplyCap)
	for _, p := range posts {
		require.LessOrEqual(t, p.Depth, po.MaxThreadDepth)
	}
}
