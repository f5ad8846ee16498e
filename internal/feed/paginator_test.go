package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/repositories/feeditem"
	postRepo "github.com/cropside/feed-engine/internal/repositories/post"
	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/internal/store/memstore"
	"github.com/cropside/feed-engine/pkg/logger"
)

type feedEnv struct {
	ms        *memstore.Store
	clock     *clockwork.FakeClock
	feedItems *feeditem.StoreRepository
	posts     *postRepo.StoreRepository
	checker   *existence.Checker
	log       logger.Logger
}

func newFeedEnv(t *testing.T) *feedEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ms := memstore.New(clock)
	log := logger.New(logger.Opts{})
	return &feedEnv{
		ms:        ms,
		clock:     clock,
		feedItems: feeditem.NewStoreRepository(ms, log),
		posts:     postRepo.NewStoreRepository(ms, log),
		checker:   existence.New(ms, log),
		log:       log,
	}
}

func (e *feedEnv) newPaginator(viewerID string) *Paginator {
	return NewPaginator(viewerID, e.feedItems, e.posts, e.checker, e.log)
}

// seedPost writes an authoritative post document and returns the model.
func (e *feedEnv) seedPost(t *testing.T, id string, createdAt time.Time) *domain.Post {
	t.Helper()
	p := &domain.Post{
		ID:        id,
		Author:    domain.AuthorSummary{ID: "author-1", Name: "Alma"},
		Kind:      domain.PostKindNormal,
		Body:      "field report " + id,
		Active:    true,
		CreatedAt: createdAt,
	}
	require.NoError(t, e.ms.Set(context.Background(), store.Col("posts"), id, p.Doc()))
	return p
}

func (e *feedEnv) fanOut(t *testing.T, viewerID string, p *domain.Post) {
	t.Helper()
	require.NoError(t, e.feedItems.AddSnapshot(context.Background(), viewerID, p))
}

func TestGetPageClampsArguments(t *testing.T) {
	env := newFeedEnv(t)
	p := env.newPaginator("viewer")
	ctx := context.Background()

	for _, tc := range []struct {
		name     string
		page     int
		pageSize int
	}{
		{"zero page size", 0, 0},
		{"oversized page", 0, MaxPageSize + 1},
		{"negative page number", -1, 20},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result, err := p.GetPage(ctx, tc.page, tc.pageSize, false)
			require.NoError(t, err)
			assert.Empty(t, result)
		})
	}
}

func TestPaginationMonotonicity(t *testing.T) {
	env := newFeedEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		p := env.seedPost(t, fmt.Sprintf("p%d", i), env.clock.Now())
		env.fanOut(t, "viewer", p)
		env.clock.Advance(time.Minute)
	}

	pag := env.newPaginator("viewer")
	seen := make(map[string]bool)
	var lastCreated time.Time
	total := 0

	for page := 0; ; page++ {
		result, err := pag.GetPage(ctx, page, 2, false)
		require.NoError(t, err)
		if len(result) == 0 {
			break
		}
		for _, post := range result {
			assert.False(t, seen[post.ID], "duplicate post %s", post.ID)
			seen[post.ID] = true
			if !lastCreated.IsZero() {
				assert.False(t, post.CreatedAt.After(lastCreated), "order regressed at %s", post.ID)
			}
			lastCreated = post.CreatedAt
			total++
		}
	}
	assert.Equal(t, 5, total)
}

func TestOutOfOrderPageRequestReturnsEmpty(t *testing.T) {
	env := newFeedEnv(t)
	p := env.seedPost(t, "p1", env.clock.Now())
	env.fanOut(t, "viewer", p)

	pag := env.newPaginator("viewer")
	result, err := pag.GetPage(context.Background(), 2, 10, false)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestFallbackToPublicOnEmptyPersonalizedFirstPage(t *testing.T) {
	env := newFeedEnv(t)
	ctx := context.Background()

	// Public posts exist, but nothing was fanned out to this viewer.
	env.seedPost(t, "pub1", env.clock.Now())
	env.clock.Advance(time.Minute)
	env.seedPost(t, "pub2", env.clock.Now())

	pag := env.newPaginator("viewer")
	result, err := pag.GetPage(ctx, 0, 10, false)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "pub2", result[0].ID)
	assert.Equal(t, "pub1", result[1].ID)
}

func TestNoModeSwitchMidWalk(t *testing.T) {
	env := newFeedEnv(t)
	ctx := context.Background()

	// One personalized entry, plenty of public posts behind it.
	p := env.seedPost(t, "p1", env.clock.Now())
	env.fanOut(t, "viewer", p)
	env.clock.Advance(time.Minute)
	env.seedPost(t, "pub1", env.clock.Now())

	pag := env.newPaginator("viewer")
	first, err := pag.GetPage(ctx, 0, 1, false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The personalized walk is exhausted at page 1; the paginator must return
	// empty rather than switching to the public source mid-walk.
	second, err := pag.GetPage(ctx, 1, 1, false)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestInactivePostsExcludedFromPublicFallback(t *testing.T) {
	env := newFeedEnv(t)
	ctx := context.Background()

	active := env.seedPost(t, "pub1", env.clock.Now())
	_ = active
	inactive := &domain.Post{
		ID:        "hidden",
		Author:    domain.AuthorSummary{ID: "author-1", Name: "Alma"},
		Active:    false,
		CreatedAt: env.clock.Now(),
	}
	require.NoError(t, env.ms.Set(ctx, store.Col("posts"), inactive.ID, inactive.Doc()))

	pag := env.newPaginator("viewer")
	result, err := pag.GetPage(ctx, 0, 10, false)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "pub1", result[0].ID)
}

func TestFirstPageCacheAndForceRefresh(t *testing.T) {
	env := newFeedEnv(t)
	ctx := context.Background()

	p1 := env.seedPost(t, "p1", env.clock.Now())
	env.fanOut(t, "viewer", p1)

	pag := env.newPaginator("viewer")
	first, err := pag.GetPage(ctx, 0, 10, false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A new post arrives; the cached first page must not see it.
	env.clock.Advance(time.Minute)
	p2 := env.seedPost(t, "p2", env.clock.Now())
	env.fanOut(t, "viewer", p2)

	cached, err := pag.GetPage(ctx, 0, 10, false)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	refreshed, err := pag.GetPage(ctx, 0, 10, true)
	require.NoError(t, err)
	require.Len(t, refreshed, 2)
	assert.Equal(t, "p2", refreshed[0].ID)
}

func TestEnrichmentRefreshesCountersAndLikeState(t *testing.T) {
	env := newFeedEnv(t)
	ctx := context.Background()

	p := env.seedPost(t, "p1", env.clock.Now())
	// Fan-out happened before the post accumulated likes, so the snapshot
	// counters are stale.
	env.fanOut(t, "viewer", p)

	require.NoError(t, env.ms.Update(ctx, store.Col("posts"), "p1", map[string]any{
		"likesCount": store.Increment{By: 7},
	}))
	require.NoError(t, env.ms.Set(ctx, store.Sub("posts", "p1", "likes"), "viewer", map[string]any{
		"likedAt": store.ServerTimestamp{},
	}))

	pag := env.newPaginator("viewer")
	result, err := pag.GetPage(ctx, 0, 10, false)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, int64(7), result[0].LikesCount)
	assert.True(t, result[0].LikedByMe)
}

func TestEnrichmentFailureDegradesToSnapshotValues(t *testing.T) {
	env := newFeedEnv(t)
	ctx := context.Background()

	p := env.seedPost(t, "p1", env.clock.Now())
	p.LikesCount = 3
	env.fanOut(t, "viewer", p)

	// Drop the authoritative record: the counter re-read now fails, and the
	// page must fall back to the snapshot's last-known values.
	require.NoError(t, env.ms.Delete(ctx, store.Col("posts"), "p1"))

	pag := env.newPaginator("viewer")
	result, err := pag.GetPage(ctx, 0, 10, false)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, int64(3), result[0].LikesCount)
	assert.False(t, result[0].LikedByMe)
}

func TestPrimaryQueryFailurePropagates(t *testing.T) {
	env := newFeedEnv(t)
	pag := env.newPaginator("viewer")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pag.GetPage(ctx, 0, 10, false)
	assert.Error(t, err)
}
