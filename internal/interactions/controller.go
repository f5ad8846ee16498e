package interactions

import (
	"context"

	"github.com/cropside/feed-engine/internal/auth"
	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/metrics"
	"github.com/cropside/feed-engine/internal/profiles"
	"github.com/cropside/feed-engine/internal/ratelimit"
	"github.com/cropside/feed-engine/internal/store"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
)

// Controller applies the optimistic toggle pattern to likes, saves and
// follows: mutate the caller's view model synchronously, claim the in-flight
// slot, commit the durable batch in the background, and roll the view model
// back if the commit fails.
//
// Each Toggle returns whether the tap was accepted and a channel delivering
// the durable outcome exactly once. A rejected tap (in-flight duplicate, rate
// limit, auth, self-follow) leaves the view model untouched.
type Controller struct {
	client   store.Client
	auth     auth.Provider
	profiles profiles.Provider
	limiter  ratelimit.Limiter
	inflight *inflightSet
	metrics  *metrics.Metrics
	log      logger.Logger
}

func NewController(
	client store.Client,
	authProvider auth.Provider,
	profileProvider profiles.Provider,
	limiter ratelimit.Limiter,
	m *metrics.Metrics,
	log logger.Logger,
) *Controller {
	return &Controller{
		client:   client,
		auth:     authProvider,
		profiles: profileProvider,
		limiter:  limiter,
		inflight: newInflightSet(),
		metrics:  m,
		log:      log.WithComponent("InteractionController"),
	}
}

// ToggleLike flips the viewer's like on the post. The post struct is the
// caller's view model; LikedByMe and LikesCount change before the store is
// touched and are restored on failure.
func (c *Controller) ToggleLike(ctx context.Context, p *domain.Post) (bool, <-chan error) {
	viewerID, err := c.admit(ctx, ActionLike, p.ID)
	if err != nil {
		return false, resolved(err)
	}
	key := inflightKey{viewerID: viewerID, kind: ActionLike, targetID: p.ID}
	if !c.inflight.TryAcquire(key) {
		c.metrics.InteractionsTotal.WithLabelValues(string(ActionLike), "collapsed").Inc()
		return false, resolved(nil)
	}

	wasLiked := p.LikedByMe
	wasCount := p.LikesCount
	p.LikedByMe = !wasLiked
	if p.LikedByMe {
		p.LikesCount = wasCount + 1
	} else if wasCount > 0 {
		p.LikesCount = wasCount - 1
	}

	nowLiked := p.LikedByMe

	rollback := func() {
		p.LikedByMe = wasLiked
		p.LikesCount = wasCount
	}

	return true, c.commit(ctx, key, rollback, func(bctx context.Context) error {
		likesPath := store.Sub("posts", p.ID, "likes")
		if nowLiked {
			liker, err := c.profiles.Summary(bctx, viewerID)
			if err != nil {
				return err
			}
			return c.client.Batch().
				Set(likesPath, viewerID, map[string]any{
					"user":    liker.Doc(),
					"likedAt": store.ServerTimestamp{},
				}).
				Update(store.Col("posts"), p.ID, map[string]any{
					"likesCount": store.Increment{By: 1},
				}).
				Commit(bctx)
		}
		return c.client.Batch().
			Delete(likesPath, viewerID).
			Update(store.Col("posts"), p.ID, map[string]any{
				"likesCount": store.Increment{By: -1},
			}).
			Commit(bctx)
	})
}

// ToggleStoryLike flips the viewer's like on a story, same shape as a post
// like but against the story's likes subcollection and counter.
func (c *Controller) ToggleStoryLike(ctx context.Context, s *domain.Story) (bool, <-chan error) {
	viewerID, err := c.admit(ctx, ActionLike, s.ID)
	if err != nil {
		return false, resolved(err)
	}
	key := inflightKey{viewerID: viewerID, kind: ActionLike, targetID: s.ID}
	if !c.inflight.TryAcquire(key) {
		c.metrics.InteractionsTotal.WithLabelValues(string(ActionLike), "collapsed").Inc()
		return false, resolved(nil)
	}

	wasLiked := s.LikedByMe
	wasCount := s.LikesCount
	s.LikedByMe = !wasLiked
	if s.LikedByMe {
		s.LikesCount = wasCount + 1
	} else if wasCount > 0 {
		s.LikesCount = wasCount - 1
	}

	nowLiked := s.LikedByMe

	rollback := func() {
		s.LikedByMe = wasLiked
		s.LikesCount = wasCount
	}

	return true, c.commit(ctx, key, rollback, func(bctx context.Context) error {
		likesPath := store.Sub("stories", s.ID, "likes")
		if nowLiked {
			return c.client.Batch().
				Set(likesPath, viewerID, map[string]any{
					"userId":  viewerID,
					"likedAt": store.ServerTimestamp{},
				}).
				Update(store.Col("stories"), s.ID, map[string]any{
					"likesCount": store.Increment{By: 1},
				}).
				Commit(bctx)
		}
		return c.client.Batch().
			Delete(likesPath, viewerID).
			Update(store.Col("stories"), s.ID, map[string]any{
				"likesCount": store.Increment{By: -1},
			}).
			Commit(bctx)
	})
}

// ToggleCommentLike flips the viewer's like on a comment. The join record is
// keyed by the comment id alone (comment ids are globally unique), which is
// also where the existence checker looks; the counter lives on the comment
// document under its post.
func (c *Controller) ToggleCommentLike(ctx context.Context, cm *domain.Comment) (bool, <-chan error) {
	viewerID, err := c.admit(ctx, ActionLike, cm.ID)
	if err != nil {
		return false, resolved(err)
	}
	if cm.PostID == "" {
		return false, resolved(apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "comment has no post id"))
	}
	key := inflightKey{viewerID: viewerID, kind: ActionLike, targetID: cm.ID}
	if !c.inflight.TryAcquire(key) {
		c.metrics.InteractionsTotal.WithLabelValues(string(ActionLike), "collapsed").Inc()
		return false, resolved(nil)
	}

	wasLiked := cm.LikedByMe
	wasCount := cm.LikesCount
	cm.LikedByMe = !wasLiked
	if cm.LikedByMe {
		cm.LikesCount = wasCount + 1
	} else if wasCount > 0 {
		cm.LikesCount = wasCount - 1
	}

	nowLiked := cm.LikedByMe

	rollback := func() {
		cm.LikedByMe = wasLiked
		cm.LikesCount = wasCount
	}

	return true, c.commit(ctx, key, rollback, func(bctx context.Context) error {
		likesPath := store.Sub("comments", cm.ID, "likes")
		commentsPath := store.Sub("posts", cm.PostID, "comments")
		if nowLiked {
			return c.client.Batch().
				Set(likesPath, viewerID, map[string]any{
					"userId":  viewerID,
					"likedAt": store.ServerTimestamp{},
				}).
				Update(commentsPath, cm.ID, map[string]any{
					"likesCount": store.Increment{By: 1},
				}).
				Commit(bctx)
		}
		return c.client.Batch().
			Delete(likesPath, viewerID).
			Update(commentsPath, cm.ID, map[string]any{
				"likesCount": store.Increment{By: -1},
			}).
			Commit(bctx)
	})
}

// ToggleSave flips the viewer's save on the post.
func (c *Controller) ToggleSave(ctx context.Context, p *domain.Post) (bool, <-chan error) {
	viewerID, err := c.admit(ctx, ActionSave, p.ID)
	if err != nil {
		return false, resolved(err)
	}
	key := inflightKey{viewerID: viewerID, kind: ActionSave, targetID: p.ID}
	if !c.inflight.TryAcquire(key) {
		c.metrics.InteractionsTotal.WithLabelValues(string(ActionSave), "collapsed").Inc()
		return false, resolved(nil)
	}

	wasSaved := p.SavedByMe
	wasCount := p.SavesCount
	p.SavedByMe = !wasSaved
	if p.SavedByMe {
		p.SavesCount = wasCount + 1
	} else if wasCount > 0 {
		p.SavesCount = wasCount - 1
	}

	nowSaved := p.SavedByMe

	rollback := func() {
		p.SavedByMe = wasSaved
		p.SavesCount = wasCount
	}

	return true, c.commit(ctx, key, rollback, func(bctx context.Context) error {
		savesPath := store.Sub("posts", p.ID, "saves")
		if nowSaved {
			return c.client.Batch().
				Set(savesPath, viewerID, map[string]any{
					"userId":  viewerID,
					"savedAt": store.ServerTimestamp{},
				}).
				Update(store.Col("posts"), p.ID, map[string]any{
					"savesCount": store.Increment{By: 1},
				}).
				Commit(bctx)
		}
		return c.client.Batch().
			Delete(savesPath, viewerID).
			Update(store.Col("posts"), p.ID, map[string]any{
				"savesCount": store.Increment{By: -1},
			}).
			Commit(bctx)
	})
}

// ToggleFollow flips the viewer's follow on the target profile. A follow is
// four writes across both user documents: the two symmetric edge records and
// the two counters, committed as one batch so partial application cannot
// happen. Following yourself is rejected before any state changes.
func (c *Controller) ToggleFollow(ctx context.Context, target *domain.Profile) (bool, <-chan error) {
	viewerID, err := c.admit(ctx, ActionFollow, target.ID)
	if err != nil {
		return false, resolved(err)
	}
	if viewerID == target.ID {
		return false, resolved(apperrors.WrapWithCode(apperrors.ErrConflict, "SELF_FOLLOW", "cannot follow yourself"))
	}
	key := inflightKey{viewerID: viewerID, kind: ActionFollow, targetID: target.ID}
	if !c.inflight.TryAcquire(key) {
		c.metrics.InteractionsTotal.WithLabelValues(string(ActionFollow), "collapsed").Inc()
		return false, resolved(nil)
	}

	wasFollowing := target.FollowedByMe
	wasCount := target.FollowersCount
	target.FollowedByMe = !wasFollowing
	if target.FollowedByMe {
		target.FollowersCount = wasCount + 1
	} else if wasCount > 0 {
		target.FollowersCount = wasCount - 1
	}

	nowFollowing := target.FollowedByMe

	rollback := func() {
		target.FollowedByMe = wasFollowing
		target.FollowersCount = wasCount
	}

	return true, c.commit(ctx, key, rollback, func(bctx context.Context) error {
		followingPath := store.Sub("users", viewerID, "following")
		followersPath := store.Sub("users", target.ID, "followers")

		if nowFollowing {
			viewer, err := c.profiles.Summary(bctx, viewerID)
			if err != nil {
				return err
			}
			return c.client.Batch().
				Set(followingPath, target.ID, map[string]any{
					"user":      target.AuthorSummary.Doc(),
					"createdAt": store.ServerTimestamp{},
				}).
				Set(followersPath, viewerID, map[string]any{
					"user":      viewer.Doc(),
					"createdAt": store.ServerTimestamp{},
				}).
				Update(store.Col("users"), viewerID, map[string]any{
					"followingCount": store.Increment{By: 1},
				}).
				Update(store.Col("users"), target.ID, map[string]any{
					"followersCount": store.Increment{By: 1},
				}).
				Commit(bctx)
		}
		return c.client.Batch().
			Delete(followingPath, target.ID).
			Delete(followersPath, viewerID).
			Update(store.Col("users"), viewerID, map[string]any{
				"followingCount": store.Increment{By: -1},
			}).
			Update(store.Col("users"), target.ID, map[string]any{
				"followersCount": store.Increment{By: -1},
			}).
			Commit(bctx)
	})
}

// admit runs the checks that precede any state change: authentication and the
// per-viewer rate limit.
func (c *Controller) admit(ctx context.Context, kind ActionKind, targetID string) (string, error) {
	if targetID == "" {
		return "", apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "target id is required")
	}
	viewerID, ok := c.auth.CurrentUserID(ctx)
	if !ok {
		return "", apperrors.WrapWithCode(apperrors.ErrNotAuthenticated, "NOT_AUTHENTICATED", string(kind))
	}
	if !c.limiter.Allow(viewerID) {
		c.metrics.InteractionsTotal.WithLabelValues(string(kind), "rate_limited").Inc()
		return "", apperrors.WrapWithCode(apperrors.ErrConflict, "RATE_LIMITED", "too many interactions")
	}
	return viewerID, nil
}

// commit runs the durable mutation in the background. The write is detached
// from the caller's cancellation: once accepted it runs to completion or
// failure. The in-flight slot is released in all cases.
func (c *Controller) commit(ctx context.Context, key inflightKey, rollback func(), mutate func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	bctx := context.WithoutCancel(ctx)

	go func() {
		defer c.inflight.Release(key)

		if err := mutate(bctx); err != nil {
			rollback()
			c.metrics.InteractionsTotal.WithLabelValues(string(key.kind), "rolled_back").Inc()
			c.log.Warn("Interaction rolled back",
				"kind", key.kind,
				"target_id", key.targetID,
				"viewer_id", key.viewerID,
				"error", err,
			)
			done <- apperrors.Wrap(err, "commit interaction")
			return
		}
		c.metrics.InteractionsTotal.WithLabelValues(string(key.kind), "committed").Inc()
		done <- nil
	}()

	return done
}

func resolved(err error) <-chan error {
	done := make(chan error, 1)
	done <- err
	return done
}
