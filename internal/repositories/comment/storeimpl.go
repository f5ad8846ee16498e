package comment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/pkg/logger"
)

type StoreRepository struct {
	client store.Client
	logger logger.Logger
}

func NewStoreRepository(client store.Client, log logger.Logger) *StoreRepository {
	return &StoreRepository{
		client: client,
		logger: log.WithComponent("CommentRepo"),
	}
}

var _ Repository = (*StoreRepository)(nil)

func (r *StoreRepository) GetByID(ctx context.Context, postID, commentID string) (*domain.Comment, error) {
	doc, err := r.client.Get(ctx, store.Sub("posts", postID, "comments"), commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return domain.DecodeComment(doc)
}

func (r *StoreRepository) ListByPost(ctx context.Context, postID string, limit int) ([]*domain.Comment, error) {
	docs, _, err := r.client.RunQuery(ctx, store.Query{
		Path:    store.Sub("posts", postID, "comments"),
		OrderBy: "createdAt",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}

	comments := make([]*domain.Comment, 0, len(docs))
	for _, doc := range docs {
		c, err := domain.DecodeComment(doc)
		if err != nil {
			r.logger.Warn("Skipping malformed comment document", "post_id", postID, "id", doc.ID, "error", err)
			continue
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func (r *StoreRepository) Create(ctx context.Context, c *domain.Comment) (*domain.Comment, error) {
	if c.ParentID != "" {
		parent, err := r.GetByID(ctx, c.PostID, c.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ParentID != "" {
			return nil, ErrReplyToReply
		}
	}

	id := uuid.NewString()
	data := c.Doc()
	data["createdAt"] = store.ServerTimestamp{}

	batch := r.client.Batch().
		Set(store.Sub("posts", c.PostID, "comments"), id, data).
		Update(store.Col("posts"), c.PostID, map[string]any{
			"commentsCount": store.Increment{By: 1},
		})
	if c.ParentID != "" {
		batch.Update(store.Sub("posts", c.PostID, "comments"), c.ParentID, map[string]any{
			"repliesCount": store.Increment{By: 1},
		})
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, c.PostID, id)
}

func (r *StoreRepository) SoftDelete(ctx context.Context, postID, commentID, reason string) error {
	return r.client.Batch().
		Update(store.Sub("posts", postID, "comments"), commentID, map[string]any{
			"active":         false,
			"deletionReason": reason,
		}).
		Update(store.Col("posts"), postID, map[string]any{
			"commentsCount": store.Increment{By: -1},
		}).
		Commit(ctx)
}
