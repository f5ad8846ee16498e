package follow

import (
	"context"
	"errors"

	"github.com/cropside/feed-engine/internal/domain"
)

var (
	ErrNotFound = errors.New("follow edge not found")
)

//go:generate go run go.uber.org/mock/mockgen -source=follow.go -destination=mocks/mock.go
type Repository interface {
	// IsFollowing reports whether viewerID follows targetID.
	IsFollowing(ctx context.Context, viewerID, targetID string) (bool, error)

	// FollowingIDs returns the ids of everyone userID follows.
	FollowingIDs(ctx context.Context, userID string) ([]string, error)

	// FollowerIDs returns the ids of everyone following userID.
	FollowerIDs(ctx context.Context, userID string) ([]string, error)

	// Following returns the full outgoing edge list, newest first.
	Following(ctx context.Context, userID string) ([]*domain.FollowEdge, error)
}
