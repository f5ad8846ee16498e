package feeditem

import (
	"context"

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
		logger: log.WithComponent("FeedItemRepo"),
	}
}

var _ Repository = (*StoreRepository)(nil)

func (r *StoreRepository) Page(ctx context.Context, viewerID string, after *store.Cursor, limit int) ([]*domain.Post, *store.Cursor, error) {
	docs, cursor, err := r.client.RunQuery(ctx, store.Query{
		Path:       store.Sub("users", viewerID, "feed"),
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
			r.logger.Warn("Skipping malformed feed snapshot", "viewer_id", viewerID, "id", doc.ID, "error", err)
			continue
		}
		posts = append(posts, p)
	}
	return posts, cursor, nil
}

func (r *StoreRepository) AddSnapshot(ctx context.Context, viewerID string, p *domain.Post) error {
	data := p.Doc()
	data["postId"] = p.ID
	return r.client.Set(ctx, store.Sub("users", viewerID, "feed"), p.ID, data)
}
