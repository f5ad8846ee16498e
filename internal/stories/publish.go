package stories

import (
	"context"

	"github.com/cropside/feed-engine/internal/domain"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
)

type PublishInput struct {
	Media        domain.MediaItem
	Overlay      *domain.TextOverlay
	LocationName string
	Visibility   domain.StoryVisibility
}

// Publish stores a new story for the author. The expiry instant is fixed
// once, at publish time, and never recomputed.
func (a *Aggregator) Publish(ctx context.Context, authorID string, in PublishInput) (*domain.Story, error) {
	if authorID == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrNotAuthenticated, "NOT_AUTHENTICATED", "publish story")
	}
	if in.Media.URL == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "story media url is required")
	}

	author, err := a.profiles.Summary(ctx, authorID)
	if err != nil {
		return nil, apperrors.Wrap(err, "resolve story author")
	}

	visibility := in.Visibility
	if visibility == "" {
		visibility = domain.StoryVisibilityPublic
	}

	now := a.clock.Now()
	created, err := a.stories.Create(ctx, &domain.Story{
		Author:       author,
		Media:        in.Media,
		Overlay:      in.Overlay,
		LocationName: in.LocationName,
		Visibility:   visibility,
		CreatedAt:    now,
		ExpiresAt:    now.Add(a.cfg.Stories.TTL),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "publish story")
	}

	a.log.Info("Story published", "story_id", created.ID, "author_id", authorID, "expires_at", created.ExpiresAt)
	return created, nil
}
