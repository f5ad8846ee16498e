package comment

import (
	"context"
	"errors"

	"github.com/cropside/feed-engine/internal/domain"
)

var (
	ErrNotFound     = errors.New("comment not found")
	ErrReplyToReply = errors.New("replies cannot be replied to")
)

//go:generate go run go.uber.org/mock/mockgen -source=comment.go -destination=mocks/mock.go
type Repository interface {
	GetByID(ctx context.Context, postID, commentID string) (*domain.Comment, error)

	// ListByPost returns the post's comments newest first, soft-deleted ones
	// included so threads keep their shape.
	ListByPost(ctx context.Context, postID string, limit int) ([]*domain.Comment, error)

	// Create stores the comment and bumps the post's comment counter (and the
	// parent's reply counter for replies) in one atomic batch.
	Create(ctx context.Context, c *domain.Comment) (*domain.Comment, error)

	// SoftDelete deactivates the comment with the given reason and decrements
	// the post's comment counter atomically. The caller enforces authorship
	// and a non-empty reason.
	SoftDelete(ctx context.Context, postID, commentID, reason string) error
}
