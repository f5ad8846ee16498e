package post

import (
	"context"
	"errors"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/store"
)

var (
	ErrNotFound = errors.New("post not found")
)

// Counters is the authoritative counter snapshot of one post.
type Counters struct {
	Likes    int64
	Comments int64
	Saves    int64
}

//go:generate go run go.uber.org/mock/mockgen -source=post.go -destination=mocks/mock.go
type Repository interface {
	// GetByID returns the authoritative post document.
	GetByID(ctx context.Context, id string) (*domain.Post, error)

	// Create stores a new post with server-assigned timestamps and returns it.
	Create(ctx context.Context, p *domain.Post) (*domain.Post, error)

	// ListPublic returns active posts ordered by creation time descending,
	// resuming after the cursor when given.
	ListPublic(ctx context.Context, after *store.Cursor, limit int) ([]*domain.Post, *store.Cursor, error)

	// GetCounters re-reads the denormalized counters from the post record.
	GetCounters(ctx context.Context, id string) (Counters, error)

	// MarkBestAnswer atomically flags the post answered with the chosen
	// comment and marks that comment as the best answer.
	MarkBestAnswer(ctx context.Context, postID, commentID string) error
}
