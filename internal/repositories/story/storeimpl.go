package story

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/pkg/logger"
)

// authorChunkSize bounds the size of each "in" filter; document stores cap
// disjunction membership lists.
const authorChunkSize = 10

type StoreRepository struct {
	client store.Client
	logger logger.Logger
}

func NewStoreRepository(client store.Client, log logger.Logger) *StoreRepository {
	return &StoreRepository{
		client: client,
		logger: log.WithComponent("StoryRepo"),
	}
}

var _ Repository = (*StoreRepository)(nil)

func (r *StoreRepository) GetByID(ctx context.Context, id string) (*domain.Story, error) {
	doc, err := r.client.Get(ctx, store.Col("stories"), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return domain.DecodeStory(doc)
}

func (r *StoreRepository) Create(ctx context.Context, s *domain.Story) (*domain.Story, error) {
	data := s.Doc()
	data["createdAt"] = store.ServerTimestamp{}

	doc, err := r.client.Create(ctx, store.Col("stories"), data)
	if err != nil {
		return nil, err
	}
	return domain.DecodeStory(doc)
}

func (r *StoreRepository) ListActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]*domain.Story, error) {
	authorIDs = lo.Uniq(authorIDs)
	if len(authorIDs) == 0 {
		return nil, nil
	}

	var all []*domain.Story
	for _, chunk := range lo.Chunk(authorIDs, authorChunkSize) {
		docs, _, err := r.client.RunQuery(ctx, store.Query{
			Path: store.Col("stories"),
			Filters: []store.Filter{
				{Field: "authorId", Op: store.OpIn, Value: chunk},
				{Field: "expiresAt", Op: store.OpGt, Value: now},
			},
			OrderBy: "createdAt",
			Desc:    true,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, r.decodeActive(docs, now)...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func (r *StoreRepository) ListActiveByAuthor(ctx context.Context, authorID string, now time.Time) ([]*domain.Story, error) {
	docs, _, err := r.client.RunQuery(ctx, store.Query{
		Path: store.Col("stories"),
		Filters: []store.Filter{
			{Field: "authorId", Op: store.OpEq, Value: authorID},
			{Field: "expiresAt", Op: store.OpGt, Value: now},
		},
		OrderBy: "createdAt",
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	return r.decodeActive(docs, now), nil
}

// decodeActive decodes story documents and re-applies the expiry check at
// read time, since the query-side filter compares against the time the query
// was built.
func (r *StoreRepository) decodeActive(docs []*store.Document, now time.Time) []*domain.Story {
	stories := make([]*domain.Story, 0, len(docs))
	for _, doc := range docs {
		s, err := domain.DecodeStory(doc)
		if err != nil {
			r.logger.Warn("Skipping malformed story document", "id", doc.ID, "error", err)
			continue
		}
		if s.Expired(now) {
			continue
		}
		stories = append(stories, s)
	}
	return stories
}
