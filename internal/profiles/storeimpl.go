package profiles

import (
	"context"
	"errors"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/pkg/logger"
)

type StoreProvider struct {
	client store.Client
	logger logger.Logger
}

func NewStoreProvider(client store.Client, log logger.Logger) *StoreProvider {
	return &StoreProvider{
		client: client,
		logger: log.WithComponent("ProfileProvider"),
	}
}

var _ Provider = (*StoreProvider)(nil)

func (p *StoreProvider) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	doc, err := p.client.Get(ctx, store.Col("users"), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return domain.DecodeProfile(doc)
}

func (p *StoreProvider) Summary(ctx context.Context, userID string) (domain.AuthorSummary, error) {
	profile, err := p.Get(ctx, userID)
	if err != nil {
		return domain.AuthorSummary{}, err
	}
	return profile.AuthorSummary, nil
}
