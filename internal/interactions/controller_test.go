package interactions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropside/feed-engine/internal/auth"
	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/metrics"
	"github.com/cropside/feed-engine/internal/profiles"
	"github.com/cropside/feed-engine/internal/ratelimit"
	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/internal/store/memstore"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
)

type controllerEnv struct {
	ms         *memstore.Store
	controller *Controller
}

func newControllerEnv(t *testing.T) *controllerEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ms := memstore.New(clock)
	log := logger.New(logger.Opts{})

	controller := NewController(
		ms,
		auth.NewContextProvider(),
		profiles.NewStoreProvider(ms, log),
		ratelimit.NewInMemoryLimiter(1000, time.Minute, 1000),
		metrics.New(),
		log,
	)
	return &controllerEnv{ms: ms, controller: controller}
}

func (e *controllerEnv) seedUser(t *testing.T, id, name string) {
	t.Helper()
	require.NoError(t, e.ms.Set(context.Background(), store.Col("users"), id, map[string]any{
		"name": name, "followersCount": int64(0), "followingCount": int64(0),
	}))
}

func (e *controllerEnv) seedPost(t *testing.T, id string, likes int64) *domain.Post {
	t.Helper()
	p := &domain.Post{
		ID:         id,
		Author:     domain.AuthorSummary{ID: "author-1", Name: "Alma"},
		Active:     true,
		LikesCount: likes,
		CreatedAt:  time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.ms.Set(context.Background(), store.Col("posts"), id, p.Doc()))
	return p
}

func viewerCtx(id string) context.Context {
	return auth.WithUserID(context.Background(), id)
}

func TestToggleLikeRoundTrip(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	p := env.seedPost(t, "p1", 0)
	ctx := viewerCtx("viewer")

	accepted, done := env.controller.ToggleLike(ctx, p)
	require.True(t, accepted)
	// Local state flips before the durable write resolves.
	assert.True(t, p.LikedByMe)
	assert.Equal(t, int64(1), p.LikesCount)
	require.NoError(t, <-done)

	_, err := env.ms.Get(ctx, store.Sub("posts", "p1", "likes"), "viewer")
	require.NoError(t, err)
	doc, err := env.ms.Get(ctx, store.Col("posts"), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int64("likesCount"))

	// Toggling again unlikes and decrements.
	accepted, done = env.controller.ToggleLike(ctx, p)
	require.True(t, accepted)
	require.NoError(t, <-done)
	assert.False(t, p.LikedByMe)
	assert.Equal(t, int64(0), p.LikesCount)

	_, err = env.ms.Get(ctx, store.Sub("posts", "p1", "likes"), "viewer")
	assert.ErrorIs(t, err, store.ErrNotFound)
	doc, err = env.ms.Get(ctx, store.Col("posts"), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Int64("likesCount"))
}

func TestToggleLikeRollsBackOnWriteFailure(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	p := env.seedPost(t, "p1", 4)
	ctx := viewerCtx("viewer")

	boom := errors.New("store rejected write")
	env.ms.SetWriteHook(func(path store.Path, id string) error {
		if path.Collection == "posts.likes" {
			return boom
		}
		return nil
	})

	accepted, done := env.controller.ToggleLike(ctx, p)
	require.True(t, accepted)

	err := <-done
	require.ErrorIs(t, err, boom)
	// Local state reverted to its pre-toggle values.
	assert.False(t, p.LikedByMe)
	assert.Equal(t, int64(4), p.LikesCount)

	// Nothing changed durably either.
	env.ms.SetWriteHook(nil)
	doc, err := env.ms.Get(ctx, store.Col("posts"), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), doc.Int64("likesCount"))
	_, err = env.ms.Get(ctx, store.Sub("posts", "p1", "likes"), "viewer")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInflightCollapse(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	p := env.seedPost(t, "p1", 0)
	ctx := viewerCtx("viewer")

	release := make(chan struct{})
	var once sync.Once
	env.ms.SetWriteHook(func(path store.Path, id string) error {
		once.Do(func() { <-release })
		return nil
	})

	accepted1, done1 := env.controller.ToggleLike(ctx, p)
	require.True(t, accepted1)

	// Second tap arrives while the first durable write is still in flight.
	accepted2, done2 := env.controller.ToggleLike(ctx, p)
	assert.False(t, accepted2)
	require.NoError(t, <-done2)

	close(release)
	require.NoError(t, <-done1)

	// Exactly one durable mutation happened.
	doc, err := env.ms.Get(ctx, store.Col("posts"), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int64("likesCount"))
	assert.True(t, p.LikedByMe)
}

func TestToggleCommentLikeRoundTrip(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	ctx := viewerCtx("viewer")

	cm := &domain.Comment{
		ID:     "c1",
		PostID: "p1",
		Author: domain.AuthorSummary{ID: "author-1", Name: "Alma"},
		Text:   "try neem oil",
		Active: true,
	}
	require.NoError(t, env.ms.Set(context.Background(), store.Sub("posts", "p1", "comments"), "c1", cm.Doc()))

	accepted, done := env.controller.ToggleCommentLike(ctx, cm)
	require.True(t, accepted)
	assert.True(t, cm.LikedByMe)
	assert.Equal(t, int64(1), cm.LikesCount)
	require.NoError(t, <-done)

	// The join record lands where the existence checker looks for it.
	checker := existence.New(env.ms, logger.New(logger.Opts{}))
	liked := checker.Existing(ctx, []string{"c1"}, existence.CommentLikes("viewer"))
	assert.True(t, liked["c1"])

	doc, err := env.ms.Get(ctx, store.Sub("posts", "p1", "comments"), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int64("likesCount"))

	// Unlike removes the record and decrements.
	accepted, done = env.controller.ToggleCommentLike(ctx, cm)
	require.True(t, accepted)
	require.NoError(t, <-done)
	assert.False(t, cm.LikedByMe)
	assert.Equal(t, int64(0), cm.LikesCount)

	liked = checker.Existing(ctx, []string{"c1"}, existence.CommentLikes("viewer"))
	assert.False(t, liked["c1"])
	doc, err = env.ms.Get(ctx, store.Sub("posts", "p1", "comments"), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Int64("likesCount"))
}

func TestToggleSaveRoundTrip(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	p := env.seedPost(t, "p1", 0)
	ctx := viewerCtx("viewer")

	accepted, done := env.controller.ToggleSave(ctx, p)
	require.True(t, accepted)
	require.NoError(t, <-done)
	assert.True(t, p.SavedByMe)

	_, err := env.ms.Get(ctx, store.Sub("posts", "p1", "saves"), "viewer")
	require.NoError(t, err)
	doc, err := env.ms.Get(ctx, store.Col("posts"), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int64("savesCount"))
}

func TestToggleFollowWritesAllFourChangesAtomically(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	env.seedUser(t, "alma", "Alma")
	ctx := viewerCtx("viewer")

	target := &domain.Profile{
		AuthorSummary: domain.AuthorSummary{ID: "alma", Name: "Alma"},
	}

	accepted, done := env.controller.ToggleFollow(ctx, target)
	require.True(t, accepted)
	require.NoError(t, <-done)
	assert.True(t, target.FollowedByMe)
	assert.Equal(t, int64(1), target.FollowersCount)

	_, err := env.ms.Get(ctx, store.Sub("users", "viewer", "following"), "alma")
	require.NoError(t, err)
	_, err = env.ms.Get(ctx, store.Sub("users", "alma", "followers"), "viewer")
	require.NoError(t, err)

	viewerDoc, err := env.ms.Get(ctx, store.Col("users"), "viewer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), viewerDoc.Int64("followingCount"))
	targetDoc, err := env.ms.Get(ctx, store.Col("users"), "alma")
	require.NoError(t, err)
	assert.Equal(t, int64(1), targetDoc.Int64("followersCount"))
}

func TestFollowAtomicityUnderPartialFailure(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	env.seedUser(t, "alma", "Alma")
	ctx := viewerCtx("viewer")

	target := &domain.Profile{
		AuthorSummary: domain.AuthorSummary{ID: "alma", Name: "Alma"},
	}

	// Fail the second staged write: the follower edge under the target.
	boom := errors.New("injected failure after first edge")
	env.ms.SetWriteHook(func(path store.Path, id string) error {
		if path.Collection == "users.followers" {
			return boom
		}
		return nil
	})

	accepted, done := env.controller.ToggleFollow(ctx, target)
	require.True(t, accepted)
	require.ErrorIs(t, <-done, boom)

	// Zero of the four changes may have applied.
	env.ms.SetWriteHook(nil)
	_, err := env.ms.Get(ctx, store.Sub("users", "viewer", "following"), "alma")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = env.ms.Get(ctx, store.Sub("users", "alma", "followers"), "viewer")
	assert.ErrorIs(t, err, store.ErrNotFound)

	viewerDoc, err := env.ms.Get(ctx, store.Col("users"), "viewer")
	require.NoError(t, err)
	assert.Equal(t, int64(0), viewerDoc.Int64("followingCount"))
	targetDoc, err := env.ms.Get(ctx, store.Col("users"), "alma")
	require.NoError(t, err)
	assert.Equal(t, int64(0), targetDoc.Int64("followersCount"))

	// And the view model rolled back.
	assert.False(t, target.FollowedByMe)
	assert.Equal(t, int64(0), target.FollowersCount)
}

func TestSelfFollowRejectedBeforeAnyMutation(t *testing.T) {
	env := newControllerEnv(t)
	env.seedUser(t, "viewer", "Vera")
	ctx := viewerCtx("viewer")

	target := &domain.Profile{AuthorSummary: domain.AuthorSummary{ID: "viewer", Name: "Vera"}}

	accepted, done := env.controller.ToggleFollow(ctx, target)
	assert.False(t, accepted)
	err := <-done
	assert.True(t, apperrors.IsConflict(err))
	assert.False(t, target.FollowedByMe)
}

func TestUnauthenticatedWritesFail(t *testing.T) {
	env := newControllerEnv(t)
	p := env.seedPost(t, "p1", 0)
	ctx := context.Background()

	accepted, done := env.controller.ToggleLike(ctx, p)
	assert.False(t, accepted)
	assert.True(t, apperrors.IsNotAuthenticated(<-done))
	assert.False(t, p.LikedByMe)

	target := &domain.Profile{AuthorSummary: domain.AuthorSummary{ID: "alma"}}
	accepted, done = env.controller.ToggleFollow(ctx, target)
	assert.False(t, accepted)
	assert.True(t, apperrors.IsNotAuthenticated(<-done))
}

func TestRateLimitRejectsExcessToggles(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ms := memstore.New(clock)
	log := logger.New(logger.Opts{})
	controller := NewController(
		ms,
		auth.NewContextProvider(),
		profiles.NewStoreProvider(ms, log),
		ratelimit.NewInMemoryLimiter(1, time.Minute, 1),
		metrics.New(),
		log,
	)
	require.NoError(t, ms.Set(context.Background(), store.Col("users"), "viewer", map[string]any{"name": "Vera"}))

	p := &domain.Post{ID: "p1", Author: domain.AuthorSummary{ID: "a"}, Active: true}
	require.NoError(t, ms.Set(context.Background(), store.Col("posts"), "p1", p.Doc()))
	ctx := viewerCtx("viewer")

	accepted, done := controller.ToggleLike(ctx, p)
	require.True(t, accepted)
	require.NoError(t, <-done)

	p2 := &domain.Post{ID: "p2", Author: domain.AuthorSummary{ID: "a"}, Active: true}
	accepted, done = controller.ToggleLike(ctx, p2)
	assert.False(t, accepted)
	assert.Error(t, <-done)
	assert.False(t, p2.LikedByMe)
}
