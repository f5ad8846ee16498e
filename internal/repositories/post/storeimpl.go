package post

import (
	"context"
	"errors"

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
		logger: log.WithComponent("PostRepo"),
	}
}

var _ Repository = (*StoreRepository)(nil)

func (r *StoreRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	doc, err := r.client.Get(ctx, store.Col("posts"), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return domain.DecodePost(doc)
}

func (r *StoreRepository) Create(ctx context.Context, p *domain.Post) (*domain.Post, error) {
	data := p.Doc()
	data["createdAt"] = store.ServerTimestamp{}
	data["updatedAt"] = store.ServerTimestamp{}

	doc, err := r.client.Create(ctx, store.Col("posts"), data)
	if err != nil {
		return nil, err
	}
	return domain.DecodePost(doc)
}

func (r *StoreRepository) ListPublic(ctx context.Context, after *store.Cursor, limit int) ([]*domain.Post, *store.Cursor, error) {
	docs, cursor, err := r.client.RunQuery(ctx, store.Query{
		Path:       store.Col("posts"),
		Filters:    []store.Filter{{Field: "active", Op: store.OpEq, Value: true}},
		OrderBy:    "createdAt",
		Desc:       true,
		StartAfter: after,
		Limit:      limit,
	})
	if err != nil {
		return nil, nil, err
	}

	posts := make([]*domain.Post, 0, len(docs))
	for _, doc := range docs {
		p, err := domain.DecodePost(doc)
		if err != nil {
			r.logger.Warn("Skipping malformed post document", "id", doc.ID, "error", err)
			continue
		}
		posts = append(posts, p)
	}
	return posts, cursor, nil
}

func (r *StoreRepository) GetCounters(ctx context.Context, id string) (Counters, error) {
	doc, err := r.client.Get(ctx, store.Col("posts"), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Counters{}, ErrNotFound
		}
		return Counters{}, err
	}
	return Counters{
		Likes:    doc.Int64("likesCount"),
		Comments: doc.Int64("commentsCount"),
		Saves:    doc.Int64("savesCount"),
	}, nil
}

func (r *StoreRepository) MarkBestAnswer(ctx context.Context, postID, commentID string) error {
	return r.client.Batch().
		Update(store.Col("posts"), postID, map[string]any{
			"question.answered":     true,
			"question.bestAnswerId": commentID,
			"updatedAt":             store.ServerTimestamp{},
		}).
		Update(store.Sub("posts", postID, "comments"), commentID, map[string]any{
			"bestAnswer":   true,
			"expertAnswer": true,
		}).
		Commit(ctx)
}
