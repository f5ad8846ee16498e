package posts

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/profiles"
	followRepo "github.com/cropside/feed-engine/internal/repositories/follow"
	"github.com/cropside/feed-engine/internal/repositories/feeditem"
	postRepo "github.com/cropside/feed-engine/internal/repositories/post"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
)

const fanOutConcurrency = 20

// Service publishes posts and fans them out to follower feeds. Fan-out is
// best effort per follower: a failed snapshot write is logged and the rest of
// the audience still gets the post.
type Service struct {
	posts     postRepo.Repository
	feedItems feeditem.Repository
	follows   followRepo.Repository
	profiles  profiles.Provider
	log       logger.Logger
}

func NewService(
	posts postRepo.Repository,
	feedItems feeditem.Repository,
	follows followRepo.Repository,
	profileProvider profiles.Provider,
	log logger.Logger,
) *Service {
	return &Service{
		posts:     posts,
		feedItems: feedItems,
		follows:   follows,
		profiles:  profileProvider,
		log:       log.WithComponent("PostService"),
	}
}

type CreateInput struct {
	Kind         domain.PostKind
	Body         string
	Media        []domain.MediaItem
	VoiceCaption *domain.VoiceCaption
	CropTags     []string
	Hashtags     []string
	Location     *domain.Location
	Question     *domain.QuestionMeta
}

// Create stores the post and writes a snapshot into every follower's feed,
// plus the author's own, so the post shows up on the author's next refresh.
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*domain.Post, error) {
	if authorID == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrNotAuthenticated, "NOT_AUTHENTICATED", "create post")
	}
	if in.Body == "" && len(in.Media) == 0 && in.VoiceCaption == nil {
		return nil, apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "post needs a body, media or voice caption")
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.PostKindNormal
	}
	if kind == domain.PostKindQuestion && in.Question == nil {
		in.Question = &domain.QuestionMeta{}
	}

	author, err := s.profiles.Summary(ctx, authorID)
	if err != nil {
		return nil, apperrors.Wrap(err, "resolve post author")
	}

	created, err := s.posts.Create(ctx, &domain.Post{
		Author:       author,
		Kind:         kind,
		Body:         in.Body,
		Media:        in.Media,
		VoiceCaption: in.VoiceCaption,
		CropTags:     in.CropTags,
		Hashtags:     in.Hashtags,
		Location:     in.Location,
		Question:     in.Question,
		Active:       true,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "create post")
	}

	s.fanOut(ctx, created)

	s.log.Info("Post published", "post_id", created.ID, "author_id", authorID, "kind", kind)
	return created, nil
}

// GetByID returns the authoritative post.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	return s.posts.GetByID(ctx, id)
}

// MarkBestAnswer flags a question post as answered with the given comment.
// Only the question's author may do this.
func (s *Service) MarkBestAnswer(ctx context.Context, requesterID, postID, commentID string) error {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if p.Kind != domain.PostKindQuestion {
		return apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "post is not a question")
	}
	if p.Author.ID != requesterID {
		return apperrors.WrapWithCode(apperrors.ErrConflict, "NOT_AUTHOR", "only the question author can pick a best answer")
	}
	return s.posts.MarkBestAnswer(ctx, postID, commentID)
}

// fanOut writes the post snapshot into each follower feed concurrently. A
// pool submit or snapshot failure for one follower never fails the publish.
func (s *Service) fanOut(ctx context.Context, p *domain.Post) {
	followerIDs, err := s.follows.FollowerIDs(ctx, p.Author.ID)
	if err != nil {
		s.log.Error("Fan-out skipped, could not list followers", "post_id", p.ID, "error", err)
		followerIDs = nil
	}
	audience := append(followerIDs, p.Author.ID)

	size := len(audience)
	if size > fanOutConcurrency {
		size = fanOutConcurrency
	}
	pool, err := ants.NewPool(size, ants.WithPreAlloc(true))
	if err != nil {
		s.log.Error("Failed to create fan-out pool", "post_id", p.ID, "error", err)
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, followerID := range audience {
		wg.Add(1)
		id := followerID

		if err := pool.Submit(func() {
			defer wg.Done()
			if err := s.feedItems.AddSnapshot(ctx, id, p); err != nil {
				s.log.Warn("Fan-out write failed for follower", "post_id", p.ID, "follower_id", id, "error", err)
			}
		}); err != nil {
			wg.Done()
			s.log.Warn("Failed to submit fan-out write", "post_id", p.ID, "follower_id", id, "error", err)
		}
	}
	wg.Wait()
}
