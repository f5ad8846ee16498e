package comments

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/profiles"
	commentRepo "github.com/cropside/feed-engine/internal/repositories/comment"
	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/internal/store/memstore"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
)

type commentEnv struct {
	ms    *memstore.Store
	clock *clockwork.FakeClock
	svc   *Service
}

func newCommentEnv(t *testing.T) *commentEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ms := memstore.New(clock)
	log := logger.New(logger.Opts{})

	svc := NewService(
		commentRepo.NewStoreRepository(ms, log),
		profiles.NewStoreProvider(ms, log),
		existence.New(ms, log),
		log,
	)
	return &commentEnv{ms: ms, clock: clock, svc: svc}
}

func (e *commentEnv) seedUser(t *testing.T, id, name, role string) {
	t.Helper()
	require.NoError(t, e.ms.Set(context.Background(), store.Col("users"), id, map[string]any{
		"name": name, "handle": "@" + id, "role": role,
	}))
}

func (e *commentEnv) seedPost(t *testing.T, id string) {
	t.Helper()
	p := &domain.Post{
		ID:        id,
		Author:    domain.AuthorSummary{ID: "author-1", Name: "Alma"},
		Kind:      domain.PostKindNormal,
		Body:      "field report",
		Active:    true,
		CreatedAt: e.clock.Now(),
	}
	require.NoError(t, e.ms.Set(context.Background(), store.Col("posts"), id, p.Doc()))
}

func (e *commentEnv) postCommentsCount(t *testing.T, postID string) int64 {
	t.Helper()
	doc, err := e.ms.Get(context.Background(), store.Col("posts"), postID)
	require.NoError(t, err)
	return doc.Int64("commentsCount")
}

func TestCreateAndListWithLikeAnnotation(t *testing.T) {
	env := newCommentEnv(t)
	ctx := context.Background()
	env.seedPost(t, "p1")
	env.seedUser(t, "vera", "Vera", "farmer")
	env.seedUser(t, "elke", "Elke", "expert")

	first, err := env.svc.Create(ctx, "vera", "p1", CreateInput{Text: "looks like blight"})
	require.NoError(t, err)
	env.clock.Advance(time.Minute)

	second, err := env.svc.Create(ctx, "elke", "p1", CreateInput{Text: "confirmed, treat with copper"})
	require.NoError(t, err)
	assert.True(t, second.ExpertAnswer)
	assert.False(t, first.ExpertAnswer)

	assert.EqualValues(t, 2, env.postCommentsCount(t, "p1"))

	// Vera liked the first comment; the join record lives under the comment id.
	require.NoError(t, env.ms.Set(ctx, store.Sub("comments", first.ID, "likes"), "vera", map[string]any{
		"userId": "vera", "likedAt": env.clock.Now(),
	}))

	list, err := env.svc.ListByPost(ctx, "vera", "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	assert.Equal(t, second.ID, list[0].ID)
	assert.False(t, list[0].LikedByMe)
	assert.Equal(t, first.ID, list[1].ID)
	assert.True(t, list[1].LikedByMe)

	anon, err := env.svc.ListByPost(ctx, "", "p1")
	require.NoError(t, err)
	for _, c := range anon {
		assert.False(t, c.LikedByMe)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newCommentEnv(t)
	ctx := context.Background()
	env.seedPost(t, "p1")
	env.seedUser(t, "vera", "Vera", "farmer")

	_, err := env.svc.Create(ctx, "", "p1", CreateInput{Text: "hi"})
	assert.True(t, apperrors.IsNotAuthenticated(err))

	_, err = env.svc.Create(ctx, "vera", "p1", CreateInput{})
	assert.True(t, apperrors.IsInvalidArgument(err))

	voice := &domain.VoiceCaption{URL: "https://cdn.example/v.ogg", DurationSec: 12}
	c, err := env.svc.Create(ctx, "vera", "p1", CreateInput{Voice: voice})
	require.NoError(t, err)
	assert.Empty(t, c.Text)
	require.NotNil(t, c.Voice)
	assert.Equal(t, voice.URL, c.Voice.URL)
}

func TestReplyDepthIsLimitedToOneLevel(t *testing.T) {
	env := newCommentEnv(t)
	ctx := context.Background()
	env.seedPost(t, "p1")
	env.seedUser(t, "vera", "Vera", "farmer")

	top, err := env.svc.Create(ctx, "vera", "p1", CreateInput{Text: "top"})
	require.NoError(t, err)

	reply, err := env.svc.Create(ctx, "vera", "p1", CreateInput{Text: "reply", ParentID: top.ID})
	require.NoError(t, err)
	assert.Equal(t, top.ID, reply.ParentID)

	refreshed, err := env.svc.ListByPost(ctx, "", "p1")
	require.NoError(t, err)
	for _, c := range refreshed {
		if c.ID == top.ID {
			assert.EqualValues(t, 1, c.RepliesCount)
		}
	}

	_, err = env.svc.Create(ctx, "vera", "p1", CreateInput{Text: "too deep", ParentID: reply.ID})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, commentRepo.ErrReplyToReply))
	assert.Equal(t, "INVALID_ARGUMENT", apperrors.GetCode(err))
}

func TestSoftDeleteFailsClosed(t *testing.T) {
	env := newCommentEnv(t)
	ctx := context.Background()
	env.seedPost(t, "p1")
	env.seedUser(t, "vera", "Vera", "farmer")

	c, err := env.svc.Create(ctx, "vera", "p1", CreateInput{Text: "to be deleted"})
	require.NoError(t, err)

	err = env.svc.SoftDelete(ctx, "vera", "p1", c.ID, "")
	assert.True(t, apperrors.IsInvalidArgument(err))

	err = env.svc.SoftDelete(ctx, "mallory", "p1", c.ID, "spam")
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "NOT_AUTHOR", apperrors.GetCode(err))

	// Both rejections left the comment untouched.
	kept, err := env.svc.ListByPost(ctx, "", "p1")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.True(t, kept[0].Active)
	assert.EqualValues(t, 1, env.postCommentsCount(t, "p1"))

	require.NoError(t, env.svc.SoftDelete(ctx, "vera", "p1", c.ID, "changed my mind"))

	deleted, err := env.svc.ListByPost(ctx, "", "p1")
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.False(t, deleted[0].Active)
	assert.Equal(t, "changed my mind", deleted[0].DeletionReason)
	assert.EqualValues(t, 0, env.postCommentsCount(t, "p1"))
}

func TestSoftDeleteRepeatDoesNotDecrementAgain(t *testing.T) {
	env := newCommentEnv(t)
	ctx := context.Background()
	env.seedPost(t, "p1")
	env.seedUser(t, "vera", "Vera", "farmer")

	c, err := env.svc.Create(ctx, "vera", "p1", CreateInput{Text: "duplicate taps"})
	require.NoError(t, err)
	require.EqualValues(t, 1, env.postCommentsCount(t, "p1"))

	require.NoError(t, env.svc.SoftDelete(ctx, "vera", "p1", c.ID, "posted twice"))
	require.EqualValues(t, 0, env.postCommentsCount(t, "p1"))

	// A second delete of the same comment is a no-op, not another decrement.
	require.NoError(t, env.svc.SoftDelete(ctx, "vera", "p1", c.ID, "still posted twice"))
	assert.EqualValues(t, 0, env.postCommentsCount(t, "p1"))

	list, err := env.svc.ListByPost(ctx, "", "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)
	assert.Equal(t, "posted twice", list[0].DeletionReason)
}

func TestSoftDeleteMissingComment(t *testing.T) {
	env := newCommentEnv(t)
	env.seedPost(t, "p1")

	err := env.svc.SoftDelete(context.Background(), "vera", "p1", "ghost", "spam")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, commentRepo.ErrNotFound))
	assert.Equal(t, "NOT_FOUND", apperrors.GetCode(err))
}
