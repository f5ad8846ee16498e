package follow

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
		logger: log.WithComponent("FollowRepo"),
	}
}

var _ Repository = (*StoreRepository)(nil)

func (r *StoreRepository) IsFollowing(ctx context.Context, viewerID, targetID string) (bool, error) {
	_, err := r.client.Get(ctx, store.Sub("users", viewerID, "following"), targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *StoreRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	return r.edgeIDs(ctx, store.Sub("users", userID, "following"))
}

func (r *StoreRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return r.edgeIDs(ctx, store.Sub("users", userID, "followers"))
}

func (r *StoreRepository) edgeIDs(ctx context.Context, p store.Path) ([]string, error) {
	docs, _, err := r.client.RunQuery(ctx, store.Query{Path: p, OrderBy: "createdAt", Desc: true})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (r *StoreRepository) Following(ctx context.Context, userID string) ([]*domain.FollowEdge, error) {
	docs, _, err := r.client.RunQuery(ctx, store.Query{
		Path:    store.Sub("users", userID, "following"),
		OrderBy: "createdAt",
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}

	edges := make([]*domain.FollowEdge, 0, len(docs))
	for _, doc := range docs {
		edge, err := domain.DecodeFollowEdge(doc)
		if err != nil {
			r.logger.Warn("Skipping malformed follow edge", "id", doc.ID, "error", err)
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
