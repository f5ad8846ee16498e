package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropside/feed-engine/internal/store"
)

func newTestStore() (*Store, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(clock), clock
}

func TestQueryOrderingAndCursor(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	path := store.Col("posts")

	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, id := range ids {
		require.NoError(t, s.Set(ctx, path, id, map[string]any{
			"active":    true,
			"createdAt": clock.Now(),
		}))
		clock.Advance(time.Minute)
	}

	q := store.Query{Path: path, OrderBy: "createdAt", Desc: true, Limit: 2}
	docs, cursor, err := s.RunQuery(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p5", docs[0].ID)
	assert.Equal(t, "p4", docs[1].ID)
	require.NotNil(t, cursor)

	q.StartAfter = cursor
	docs, cursor, err = s.RunQuery(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p3", docs[0].ID)
	assert.Equal(t, "p2", docs[1].ID)

	q.StartAfter = cursor
	docs, _, err = s.RunQuery(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p1", docs[0].ID)
}

func TestQueryCursorSurvivesDeletedAnchor(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	path := store.Col("posts")

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, s.Set(ctx, path, id, map[string]any{"createdAt": clock.Now()}))
		clock.Advance(time.Minute)
	}

	q := store.Query{Path: path, OrderBy: "createdAt", Desc: true, Limit: 1}
	docs, cursor, err := s.RunQuery(ctx, q)
	require.NoError(t, err)
	require.Equal(t, "p3", docs[0].ID)

	require.NoError(t, s.Delete(ctx, path, "p3"))

	q.StartAfter = cursor
	docs, _, err = s.RunQuery(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "p2", docs[0].ID)
}

func TestUpdateIncrementAndDottedPath(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	path := store.Col("posts")

	require.NoError(t, s.Set(ctx, path, "p1", map[string]any{
		"likesCount": int64(2),
		"question":   map[string]any{"answered": false},
	}))

	require.NoError(t, s.Update(ctx, path, "p1", map[string]any{
		"likesCount":            store.Increment{By: 3},
		"question.answered":     true,
		"question.bestAnswerId": "c9",
	}))

	doc, err := s.Get(ctx, path, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Int64("likesCount"))
	q := doc.Map("question")
	assert.Equal(t, true, q["answered"])
	assert.Equal(t, "c9", q["bestAnswerId"])
}

func TestUpdateMissingDocumentReturnsNotFound(t *testing.T) {
	s, _ := newTestStore()
	err := s.Update(context.Background(), store.Col("posts"), "nope", map[string]any{"x": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServerTimestampResolvesFromClock(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	path := store.Col("stories")

	require.NoError(t, s.Set(ctx, path, "s1", map[string]any{"viewedAt": store.ServerTimestamp{}}))

	doc, err := s.Get(ctx, path, "s1")
	require.NoError(t, err)
	assert.True(t, doc.Time("viewedAt").Equal(clock.Now().UTC()))
}

func TestBatchCommitIsAtomicUnderFailureInjection(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	users := store.Col("users")

	require.NoError(t, s.Set(ctx, users, "alice", map[string]any{"followersCount": int64(0)}))
	require.NoError(t, s.Set(ctx, users, "bob", map[string]any{"followersCount": int64(0)}))

	boom := errors.New("injected write failure")
	s.SetWriteHook(func(p store.Path, id string) error {
		if p.Collection == "users.followers" {
			return boom
		}
		return nil
	})

	err := s.Batch().
		Set(store.Sub("users", "alice", "following"), "bob", map[string]any{"createdAt": store.ServerTimestamp{}}).
		Set(store.Sub("users", "bob", "followers"), "alice", map[string]any{"createdAt": store.ServerTimestamp{}}).
		Update(users, "alice", map[string]any{"followingCount": store.Increment{By: 1}}).
		Update(users, "bob", map[string]any{"followersCount": store.Increment{By: 1}}).
		Commit(ctx)
	require.ErrorIs(t, err, boom)

	// The first staged write passed its hook, but nothing may have applied.
	_, err = s.Get(ctx, store.Sub("users", "alice", "following"), "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
	doc, err := s.Get(ctx, users, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Int64("followersCount"))
}

func TestBatchCommitRejectsUpdateOfMissingDocumentWholesale(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	// No users/viewer document exists, so the counter update cannot apply —
	// and neither may the edge record staged before it.
	err := s.Batch().
		Set(store.Sub("users", "viewer", "following"), "alma", map[string]any{"createdAt": store.ServerTimestamp{}}).
		Update(store.Col("users"), "viewer", map[string]any{"followingCount": store.Increment{By: 1}}).
		Commit(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Get(ctx, store.Sub("users", "viewer", "following"), "alma")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBatchCommitUpdateSeesEarlierStagedWrites(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	posts := store.Col("posts")

	// A set earlier in the batch satisfies a later update of the same doc.
	err := s.Batch().
		Set(posts, "p1", map[string]any{"likesCount": int64(0)}).
		Update(posts, "p1", map[string]any{"likesCount": store.Increment{By: 1}}).
		Commit(ctx)
	require.NoError(t, err)

	doc, err := s.Get(ctx, posts, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int64("likesCount"))

	// A delete earlier in the batch makes a later update fail the whole batch.
	require.NoError(t, s.Set(ctx, posts, "p2", map[string]any{"likesCount": int64(5)}))
	err = s.Batch().
		Delete(posts, "p2").
		Update(posts, "p2", map[string]any{"likesCount": store.Increment{By: 1}}).
		Commit(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	doc, err = s.Get(ctx, posts, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Int64("likesCount"))
}

func TestFiltersEqInAndArrayContains(t *testing.T) {
	s, clock := newTestStore()
	ctx := context.Background()
	path := store.Col("stories")

	require.NoError(t, s.Set(ctx, path, "s1", map[string]any{"authorId": "a1", "tags": []string{"maize"}, "createdAt": clock.Now()}))
	require.NoError(t, s.Set(ctx, path, "s2", map[string]any{"authorId": "a2", "tags": []string{"beans"}, "createdAt": clock.Now()}))

	docs, _, err := s.RunQuery(ctx, store.Query{
		Path:    path,
		Filters: []store.Filter{{Field: "authorId", Op: store.OpIn, Value: []string{"a1"}}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1", docs[0].ID)

	docs, _, err = s.RunQuery(ctx, store.Query{
		Path:    path,
		Filters: []store.Filter{{Field: "tags", Op: store.OpArrayContains, Value: "beans"}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s2", docs[0].ID)
}

func TestDocumentsAreIsolatedFromCallerMutation(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	path := store.Col("posts")

	data := map[string]any{"body": "original"}
	require.NoError(t, s.Set(ctx, path, "p1", data))
	data["body"] = "mutated after write"

	doc, err := s.Get(ctx, path, "p1")
	require.NoError(t, err)
	assert.Equal(t, "original", doc.String("body"))

	doc.Data["body"] = "mutated after read"
	again, err := s.Get(ctx, path, "p1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.String("body"))
}
