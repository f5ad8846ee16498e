package feeditem

import (
	"context"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/store"
)

//go:generate go run go.uber.org/mock/mockgen -source=feeditem.go -destination=mocks/mock.go

// Repository reads and writes the per-viewer fan-out feed. Each entry is a
// post snapshot written at publish time under the follower's feed
// subcollection; counters inside the snapshot go stale and are refreshed from
// the post record by the paginator.
type Repository interface {
	// Page returns one page of the viewer's personalized feed, newest first,
	// resuming after the cursor when given.
	Page(ctx context.Context, viewerID string, after *store.Cursor, limit int) ([]*domain.Post, *store.Cursor, error)

	// AddSnapshot writes the fan-out entry for one follower. The entry id is
	// the post id, so re-fanning the same post is idempotent.
	AddSnapshot(ctx context.Context, viewerID string, p *domain.Post) error
}
