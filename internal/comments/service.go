package comments

import (
	"context"

	"github.com/samber/lo"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/profiles"
	commentRepo "github.com/cropside/feed-engine/internal/repositories/comment"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
)

const defaultListLimit = 100

// Service handles post comments: listing with the viewer's like state,
// creating top-level comments and one level of replies, and author-gated
// soft deletion.
type Service struct {
	comments commentRepo.Repository
	profiles profiles.Provider
	checker  *existence.Checker
	log      logger.Logger
}

func NewService(
	comments commentRepo.Repository,
	profileProvider profiles.Provider,
	checker *existence.Checker,
	log logger.Logger,
) *Service {
	return &Service{
		comments: comments,
		profiles: profileProvider,
		checker:  checker,
		log:      log.WithComponent("CommentService"),
	}
}

// ListByPost returns the post's comments annotated with the viewer's like
// state. An anonymous viewer sees everything as not liked.
func (s *Service) ListByPost(ctx context.Context, viewerID, postID string) ([]*domain.Comment, error) {
	if postID == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "post id is required")
	}

	list, err := s.comments.ListByPost(ctx, postID, defaultListLimit)
	if err != nil {
		return nil, apperrors.Wrap(err, "list comments")
	}

	if viewerID != "" && len(list) > 0 {
		ids := lo.Map(list, func(c *domain.Comment, _ int) string { return c.ID })
		liked := s.checker.Existing(ctx, ids, existence.CommentLikes(viewerID))
		for _, c := range list {
			c.LikedByMe = liked[c.ID]
		}
	}
	return list, nil
}

// GetByID loads one comment, annotated with the viewer's like state.
func (s *Service) GetByID(ctx context.Context, viewerID, postID, commentID string) (*domain.Comment, error) {
	if postID == "" || commentID == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "post and comment ids are required")
	}
	c, err := s.comments.GetByID(ctx, postID, commentID)
	if err != nil {
		if apperrors.Is(err, commentRepo.ErrNotFound) {
			return nil, apperrors.WrapWithCode(err, "NOT_FOUND", "comment not found")
		}
		return nil, apperrors.Wrap(err, "load comment")
	}
	if viewerID != "" {
		liked := s.checker.Existing(ctx, []string{c.ID}, existence.CommentLikes(viewerID))
		c.LikedByMe = liked[c.ID]
	}
	return c, nil
}

type CreateInput struct {
	Text     string
	Voice    *domain.VoiceCaption
	ParentID string
}

// Create stores a comment by the viewer. Threading is one level deep; the
// repository rejects replies to replies.
func (s *Service) Create(ctx context.Context, viewerID, postID string, in CreateInput) (*domain.Comment, error) {
	if viewerID == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrNotAuthenticated, "NOT_AUTHENTICATED", "create comment")
	}
	if postID == "" {
		return nil, apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "post id is required")
	}
	if in.Text == "" && in.Voice == nil {
		return nil, apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "comment needs text or a voice note")
	}

	author, err := s.profiles.Summary(ctx, viewerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "resolve comment author")
	}

	created, err := s.comments.Create(ctx, &domain.Comment{
		PostID:       postID,
		Author:       author,
		Text:         in.Text,
		Voice:        in.Voice,
		ParentID:     in.ParentID,
		ExpertAnswer: author.Role == "expert",
		Active:       true,
	})
	if err != nil {
		if apperrors.Is(err, commentRepo.ErrReplyToReply) {
			return nil, apperrors.WrapWithCode(err, "INVALID_ARGUMENT", "replies cannot be replied to")
		}
		return nil, apperrors.Wrap(err, "create comment")
	}
	return created, nil
}

// SoftDelete deactivates the viewer's own comment. It fails closed: an empty
// reason or a requester other than the author is rejected outright.
func (s *Service) SoftDelete(ctx context.Context, viewerID, postID, commentID, reason string) error {
	if viewerID == "" {
		return apperrors.WrapWithCode(apperrors.ErrNotAuthenticated, "NOT_AUTHENTICATED", "delete comment")
	}
	if reason == "" {
		return apperrors.WrapWithCode(apperrors.ErrInvalidArgument, "INVALID_ARGUMENT", "deletion reason is required")
	}

	c, err := s.comments.GetByID(ctx, postID, commentID)
	if err != nil {
		if apperrors.Is(err, commentRepo.ErrNotFound) {
			return apperrors.WrapWithCode(err, "NOT_FOUND", "comment not found")
		}
		return apperrors.Wrap(err, "load comment")
	}
	if c.Author.ID != viewerID {
		return apperrors.WrapWithCode(apperrors.ErrConflict, "NOT_AUTHOR", "only the author can delete a comment")
	}
	// Already deleted: a repeat must not decrement the post counter again.
	if !c.Active {
		return nil
	}

	if err := s.comments.SoftDelete(ctx, postID, commentID, reason); err != nil {
		return apperrors.Wrap(err, "delete comment")
	}
	s.log.Info("Comment soft-deleted", "post_id", postID, "comment_id", commentID)
	return nil
}
