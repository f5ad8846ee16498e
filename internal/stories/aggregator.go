package stories

import (
	"context"
	"errors"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/metrics"
	"github.com/cropside/feed-engine/internal/profiles"
	followRepo "github.com/cropside/feed-engine/internal/repositories/follow"
	storyRepo "github.com/cropside/feed-engine/internal/repositories/story"
	"github.com/cropside/feed-engine/internal/store"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
	"github.com/cropside/feed-engine/pkg/retry"
)

// Aggregator assembles the story bar and per-author story lists. Expiry is
// enforced at read time only; expired documents simply stop appearing.
type Aggregator struct {
	stories  storyRepo.Repository
	follows  followRepo.Repository
	profiles profiles.Provider
	checker  *existence.Checker
	client   store.Client
	cfg      *config.Config
	clock    clockwork.Clock
	metrics  *metrics.Metrics
	log      logger.Logger
}

func New(
	stories storyRepo.Repository,
	follows followRepo.Repository,
	profileProvider profiles.Provider,
	checker *existence.Checker,
	client store.Client,
	cfg *config.Config,
	clock clockwork.Clock,
	m *metrics.Metrics,
	log logger.Logger,
) *Aggregator {
	return &Aggregator{
		stories:  stories,
		follows:  follows,
		profiles: profileProvider,
		checker:  checker,
		client:   client,
		cfg:      cfg,
		clock:    clock,
		metrics:  m,
		log:      log.WithComponent("StoryAggregator"),
	}
}

// GetStoryBar returns live stories from everyone the viewer follows, plus the
// viewer's own, grouped per author and ordered by most recent story. The bar
// is non-critical UI: any failure yields an empty bar, never an error.
func (a *Aggregator) GetStoryBar(ctx context.Context, viewerID string) []*domain.UserStories {
	if viewerID == "" {
		return []*domain.UserStories{}
	}

	authorIDs, err := a.follows.FollowingIDs(ctx, viewerID)
	if err != nil {
		a.log.Warn("Story bar degraded to empty", "viewer_id", viewerID, "error", err)
		return []*domain.UserStories{}
	}
	authorIDs = append(authorIDs, viewerID)

	now := a.clock.Now()
	live, err := a.stories.ListActiveByAuthors(ctx, authorIDs, now)
	if err != nil {
		a.log.Warn("Story bar degraded to empty", "viewer_id", viewerID, "error", err)
		return []*domain.UserStories{}
	}
	if len(live) == 0 {
		return []*domain.UserStories{}
	}

	a.annotate(ctx, viewerID, live)
	a.metrics.StoryBarsBuilt.Inc()
	return groupByAuthor(live)
}

// GetStoriesForUser returns the target author's live stories with the
// viewer's view/like state. A viewer who neither follows the target nor is
// the target sees only public stories.
func (a *Aggregator) GetStoriesForUser(ctx context.Context, viewerID, targetUserID string) ([]*domain.Story, error) {
	if targetUserID == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "target user id is required")
	}

	live, err := a.stories.ListActiveByAuthor(ctx, targetUserID, a.clock.Now())
	if err != nil {
		return nil, apperrors.Wrap(err, "list stories for user")
	}

	if viewerID != targetUserID {
		publicOnly := true
		if viewerID != "" {
			following, err := a.follows.IsFollowing(ctx, viewerID, targetUserID)
			if err != nil {
				// Conservative default: treat an unknown follow state as not
				// following.
				a.log.Debug("Follow check degraded to not-following", "viewer_id", viewerID, "target_id", targetUserID, "error", err)
			}
			publicOnly = !following
		}
		if publicOnly {
			live = lo.Filter(live, func(s *domain.Story, _ int) bool {
				return s.Visibility == domain.StoryVisibilityPublic
			})
		}
	}

	a.annotate(ctx, viewerID, live)
	return live, nil
}

// MarkViewed records that the viewer saw the story. The view join record and
// the counter increment land in one batch, and an existing record makes the
// call a no-op, so repeat views never double-count.
func (a *Aggregator) MarkViewed(ctx context.Context, storyID, viewerID string) error {
	if storyID == "" || viewerID == "" {
		return apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "story id and viewer id are required")
	}

	viewsPath := store.Sub("stories", storyID, "views")

	op := func() error {
		_, err := a.client.Get(ctx, viewsPath, viewerID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		return a.client.Batch().
			Set(viewsPath, viewerID, map[string]any{
				"userId":   viewerID,
				"viewedAt": store.ServerTimestamp{},
			}).
			Update(store.Col("stories"), storyID, map[string]any{
				"viewsCount": store.Increment{By: 1},
			}).
			Commit(ctx)
	}

	if err := retry.Do(ctx, a.log, "mark_story_viewed", op, retry.DefaultConfig()); err != nil {
		return apperrors.Wrap(err, "mark story viewed")
	}
	a.metrics.StoryViewsMarked.Inc()
	return nil
}

// annotate fills ViewedByMe/LikedByMe for the viewer. Both checks run
// concurrently; an anonymous viewer keeps the zero values.
func (a *Aggregator) annotate(ctx context.Context, viewerID string, live []*domain.Story) {
	if viewerID == "" || len(live) == 0 {
		return
	}

	ids := lo.Map(live, func(s *domain.Story, _ int) string { return s.ID })

	var viewed, liked map[string]bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		viewed = a.checker.Existing(gctx, ids, existence.StoryViews(viewerID))
		return nil
	})
	g.Go(func() error {
		liked = a.checker.Existing(gctx, ids, existence.StoryLikes(viewerID))
		return nil
	})
	_ = g.Wait()

	for _, s := range live {
		s.ViewedByMe = viewed[s.ID]
		s.LikedByMe = liked[s.ID]
	}
}

func groupByAuthor(live []*domain.Story) []*domain.UserStories {
	grouped := lo.GroupBy(live, func(s *domain.Story) string { return s.Author.ID })

	bar := make([]*domain.UserStories, 0, len(grouped))
	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.After(group[j].CreatedAt)
		})
		entry := &domain.UserStories{
			Author:          group[0].Author,
			Stories:         group,
			LatestStoryTime: group[0].CreatedAt,
		}
		for _, s := range group {
			if !s.ViewedByMe {
				entry.HasUnviewedStories = true
				break
			}
		}
		bar = append(bar, entry)
	}

	sort.Slice(bar, func(i, j int) bool {
		return bar[i].LatestStoryTime.After(bar[j].LatestStoryTime)
	})
	return bar
}
