package store

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/cropside/feed-engine/pkg/errors"
)

// WithTimeout bounds every round trip against the backend and surfaces
// deadline expiry as the timeout error kind. Services above this layer never
// set store deadlines themselves.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{inner: c, timeout: d}
}

type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

var _ Client = (*timeoutClient)(nil)

func (t *timeoutClient) Get(ctx context.Context, p Path, id string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	doc, err := t.inner.Get(ctx, p, id)
	return doc, mapDeadline(err)
}

func (t *timeoutClient) Create(ctx context.Context, p Path, data map[string]any) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	doc, err := t.inner.Create(ctx, p, data)
	return doc, mapDeadline(err)
}

func (t *timeoutClient) Set(ctx context.Context, p Path, id string, data map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return mapDeadline(t.inner.Set(ctx, p, id, data))
}

func (t *timeoutClient) Update(ctx context.Context, p Path, id string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return mapDeadline(t.inner.Update(ctx, p, id, fields))
}

func (t *timeoutClient) Delete(ctx context.Context, p Path, id string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return mapDeadline(t.inner.Delete(ctx, p, id))
}

func (t *timeoutClient) RunQuery(ctx context.Context, q Query) ([]*Document, *Cursor, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	docs, cursor, err := t.inner.RunQuery(ctx, q)
	return docs, cursor, mapDeadline(err)
}

func (t *timeoutClient) Batch() WriteBatch {
	return &timeoutBatch{inner: t.inner.Batch(), timeout: t.timeout}
}

type timeoutBatch struct {
	inner   WriteBatch
	timeout time.Duration
}

func (b *timeoutBatch) Set(p Path, id string, data map[string]any) WriteBatch {
	b.inner.Set(p, id, data)
	return b
}

func (b *timeoutBatch) Update(p Path, id string, fields map[string]any) WriteBatch {
	b.inner.Update(p, id, fields)
	return b
}

func (b *timeoutBatch) Delete(p Path, id string) WriteBatch {
	b.inner.Delete(p, id)
	return b
}

func (b *timeoutBatch) Commit(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return mapDeadline(b.inner.Commit(ctx))
}

func mapDeadline(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(apperrors.ErrTimeout, err)
	}
	return err
}
