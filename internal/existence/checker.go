package existence

import (
	"context"
	"errors"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/pkg/logger"
)

// maxConcurrent caps the fan-out; batches are at most a page (<= 50) anyway.
const maxConcurrent = 50

// JoinSpec resolves the join-record location for one target id and a fixed
// viewer, e.g. posts/<id>/likes/<viewer>.
type JoinSpec func(targetID string) (store.Path, string)

// PostLikes locates the viewer's like join record under a post.
func PostLikes(viewerID string) JoinSpec {
	return joinUnder("posts", "likes", viewerID)
}

// PostSaves locates the viewer's save join record under a post.
func PostSaves(viewerID string) JoinSpec {
	return joinUnder("posts", "saves", viewerID)
}

// StoryLikes locates the viewer's like join record under a story.
func StoryLikes(viewerID string) JoinSpec {
	return joinUnder("stories", "likes", viewerID)
}

// StoryViews locates the viewer's view join record under a story.
func StoryViews(viewerID string) JoinSpec {
	return joinUnder("stories", "views", viewerID)
}

// CommentLikes locates the viewer's like join record under a comment.
// Comment ids are globally unique, so the like subcollection is keyed by the
// comment alone.
func CommentLikes(viewerID string) JoinSpec {
	return joinUnder("comments", "likes", viewerID)
}

func joinUnder(parentCol, name, viewerID string) JoinSpec {
	return func(targetID string) (store.Path, string) {
		return store.Sub(parentCol, targetID, name), viewerID
	}
}

// Checker answers "which of these targets has a join record for this viewer"
// with one concurrent existence read per target. A failed read degrades that
// target to absent; the batch itself never fails, since the conservative
// display state for any relationship is "does not hold".
type Checker struct {
	client store.Client
	logger logger.Logger
}

func New(client store.Client, log logger.Logger) *Checker {
	return &Checker{
		client: client,
		logger: log.WithComponent("ExistenceChecker"),
	}
}

// Existing returns the subset of targetIDs whose join record exists.
func (c *Checker) Existing(ctx context.Context, targetIDs []string, spec JoinSpec) map[string]bool {
	found := make(map[string]bool, len(targetIDs))
	if len(targetIDs) == 0 {
		return found
	}

	size := len(targetIDs)
	if size > maxConcurrent {
		size = maxConcurrent
	}
	pool, err := ants.NewPool(size, ants.WithPreAlloc(true))
	if err != nil {
		c.logger.Error("Failed to create existence pool", "error", err)
		return found
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, targetID := range targetIDs {
		wg.Add(1)
		id := targetID

		if err := pool.Submit(func() {
			defer wg.Done()
			p, docID := spec(id)
			_, err := c.client.Get(ctx, p, docID)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					c.logger.Debug("Existence check degraded to absent", "target_id", id, "error", err)
				}
				return
			}
			mu.Lock()
			found[id] = true
			mu.Unlock()
		}); err != nil {
			wg.Done()
			c.logger.Warn("Failed to submit existence check", "target_id", id, "error", err)
		}
	}

	wg.Wait()
	return found
}
