package auth

import (
	"context"
)

//go:generate go run go.uber.org/mock/mockgen -source=auth.go -destination=mocks/mock.go

// Provider exposes the identity of the current viewer. Read paths treat an
// absent viewer as "not following / not liked"; write paths fail with an
// authentication error.
type Provider interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

type ctxKey struct{}

// WithUserID returns a context carrying the authenticated viewer id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// ContextProvider reads the viewer id that transport middleware put on the
// request context.
type ContextProvider struct{}

func NewContextProvider() *ContextProvider {
	return &ContextProvider{}
}

var _ Provider = (*ContextProvider)(nil)

func (p *ContextProvider) CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
