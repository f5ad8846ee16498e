package profiles

import (
	"context"
	"errors"

	"github.com/cropside/feed-engine/internal/domain"
)

var ErrNotFound = errors.New("profile not found")

//go:generate go run go.uber.org/mock/mockgen -source=profiles.go -destination=mocks/mock.go -package=mocks

// Provider supplies the denormalized author summaries embedded into join
// records, posts and fan-out documents at write time.
type Provider interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Summary(ctx context.Context, userID string) (domain.AuthorSummary, error)
}
