package story

import (
	"context"
	"errors"
	"time"

	"github.com/cropside/feed-engine/internal/domain"
)

var (
	ErrNotFound = errors.New("story not found")
)

//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=mocks/mock.go
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Story, error)

	// Create stores a new story; the caller has already fixed ExpiresAt.
	Create(ctx context.Context, s *domain.Story) (*domain.Story, error)

	// ListActiveByAuthors returns unexpired stories from the given authors,
	// newest first. Expiry is a read filter; expired documents are simply not
	// returned.
	ListActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]*domain.Story, error)

	// ListActiveByAuthor is ListActiveByAuthors scoped to one author.
	ListActiveByAuthor(ctx context.Context, authorID string, now time.Time) ([]*domain.Story, error)
}
