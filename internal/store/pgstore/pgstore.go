package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/pkg/logger"
)

// SqBuilder is shared by every query in this package.
var SqBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// timeLayout is fixed-width so that lexicographic comparison of encoded
// timestamps in JSONB matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store keeps every document in a single documents table keyed by
// (collection, parent_id, id) with a JSONB body.
type Store struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

func New(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: log.WithComponent("PgStore"),
	}
}

var _ store.Client = (*Store)(nil)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so single writes
// and batch writes share the same statement builders.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) Get(ctx context.Context, p store.Path, id string) (*store.Document, error) {
	query, args, err := SqBuilder.
		Select("body", "created_at", "updated_at").
		From("documents").
		Where(sq.Eq{"collection": p.Collection, "parent_id": p.Parent, "id": id}).
		ToSql()
	if err != nil {
		return nil, store.ErrBadQuery
	}

	var raw []byte
	var createdAt, updatedAt time.Time
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&raw, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode document body: %w", err)
	}
	return &store.Document{ID: id, Path: p, Data: data, CreateTime: createdAt, UpdateTime: updatedAt}, nil
}

func (s *Store) Create(ctx context.Context, p store.Path, data map[string]any) (*store.Document, error) {
	id := newDocID()
	if err := s.Set(ctx, p, id, data); err != nil {
		return nil, err
	}
	return s.Get(ctx, p, id)
}

func (s *Store) Set(ctx context.Context, p store.Path, id string, data map[string]any) error {
	return setDoc(ctx, s.pool, p, id, data)
}

func (s *Store) Update(ctx context.Context, p store.Path, id string, fields map[string]any) error {
	return updateDoc(ctx, s.pool, p, id, fields)
}

func (s *Store) Delete(ctx context.Context, p store.Path, id string) error {
	query, args, err := SqBuilder.
		Delete("documents").
		Where(sq.Eq{"collection": p.Collection, "parent_id": p.Parent, "id": id}).
		ToSql()
	if err != nil {
		return store.ErrBadQuery
	}
	_, err = s.pool.Exec(ctx, query, args...)
	return err
}

func (s *Store) RunQuery(ctx context.Context, q store.Query) ([]*store.Document, *store.Cursor, error) {
	builder := SqBuilder.
		Select("id", "body", "created_at", "updated_at").
		From("documents").
		Where(sq.Eq{"collection": q.Path.Collection, "parent_id": q.Path.Parent})

	for _, f := range q.Filters {
		switch f.Op {
		case store.OpEq:
			obj, err := containmentJSON(f.Field, encodeValue(f.Value))
			if err != nil {
				return nil, nil, store.ErrBadQuery
			}
			builder = builder.Where("body @> ?::jsonb", obj)
		case store.OpArrayContains:
			obj, err := containmentJSON(f.Field, []any{encodeValue(f.Value)})
			if err != nil {
				return nil, nil, store.ErrBadQuery
			}
			builder = builder.Where("body @> ?::jsonb", obj)
		case store.OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return nil, nil, store.ErrBadQuery
			}
			builder = builder.Where(fmt.Sprintf("body->>'%s' = ANY(?)", f.Field), values)
		case store.OpLt:
			builder = builder.Where(fmt.Sprintf("body->>'%s' < ?", f.Field), encodeScalar(f.Value))
		case store.OpGt:
			builder = builder.Where(fmt.Sprintf("body->>'%s' > ?", f.Field), encodeScalar(f.Value))
		default:
			return nil, nil, store.ErrBadQuery
		}
	}

	if q.OrderBy != "" {
		dir := "ASC"
		cmp := ">"
		if q.Desc {
			dir = "DESC"
			cmp = "<"
		}
		if q.StartAfter != nil {
			builder = builder.Where(
				fmt.Sprintf("(body->>'%s', id) %s (?, ?)", q.OrderBy, cmp),
				encodeScalar(q.StartAfter.OrderValue), q.StartAfter.DocID,
			)
		}
		builder = builder.OrderBy(
			fmt.Sprintf("body->>'%s' %s", q.OrderBy, dir),
			fmt.Sprintf("id %s", dir),
		)
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, nil, store.ErrBadQuery
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var docs []*store.Document
	for rows.Next() {
		var id string
		var raw []byte
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &raw, &createdAt, &updatedAt); err != nil {
			return nil, nil, err
		}
		data := make(map[string]any)
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, nil, fmt.Errorf("decode document body: %w", err)
		}
		docs = append(docs, &store.Document{ID: id, Path: q.Path, Data: data, CreateTime: createdAt, UpdateTime: updatedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if len(docs) == 0 {
		return nil, nil, nil
	}
	last := docs[len(docs)-1]
	cursor := &store.Cursor{OrderValue: last.Data[q.OrderBy], DocID: last.ID}
	return docs, cursor, nil
}

func (s *Store) Batch() store.WriteBatch {
	return &batch{store: s}
}

type batchOp func(ctx context.Context, tx pgx.Tx) error

type batch struct {
	store *Store
	ops   []batchOp
}

var _ store.WriteBatch = (*batch)(nil)

func (b *batch) Set(p store.Path, id string, data map[string]any) store.WriteBatch {
	b.ops = append(b.ops, func(ctx context.Context, tx pgx.Tx) error {
		return setDoc(ctx, tx, p, id, data)
	})
	return b
}

func (b *batch) Update(p store.Path, id string, fields map[string]any) store.WriteBatch {
	b.ops = append(b.ops, func(ctx context.Context, tx pgx.Tx) error {
		return updateDoc(ctx, tx, p, id, fields)
	})
	return b
}

func (b *batch) Delete(p store.Path, id string) store.WriteBatch {
	b.ops = append(b.ops, func(ctx context.Context, tx pgx.Tx) error {
		query, args, err := SqBuilder.
			Delete("documents").
			Where(sq.Eq{"collection": p.Collection, "parent_id": p.Parent, "id": id}).
			ToSql()
		if err != nil {
			return store.ErrBadQuery
		}
		_, err = tx.Exec(ctx, query, args...)
		return err
	})
	return b
}

func (b *batch) Commit(ctx context.Context) error {
	tx, err := b.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, op := range b.ops {
		if err := op(ctx, tx); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func setDoc(ctx context.Context, q pgxQuerier, p store.Path, id string, data map[string]any) error {
	now := time.Now().UTC()
	resolved := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := v.(store.ServerTimestamp); ok {
			resolved[k] = now.Format(timeLayout)
			continue
		}
		resolved[k] = encodeValue(v)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("encode document body: %w", err)
	}

	query, args, err := SqBuilder.
		Insert("documents").
		Columns("collection", "parent_id", "id", "body", "created_at", "updated_at").
		Values(p.Collection, p.Parent, id, raw, now, now).
		Suffix("ON CONFLICT (collection, parent_id, id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return store.ErrBadQuery
	}
	_, err = q.Exec(ctx, query, args...)
	return err
}

func updateDoc(ctx context.Context, q pgxQuerier, p store.Path, id string, fields map[string]any) error {
	expr := "body"
	var args []any
	n := 1
	for k, v := range fields {
		// Dotted field paths address nested objects.
		jsonPath := "{" + strings.ReplaceAll(k, ".", ",") + "}"
		switch tv := v.(type) {
		case store.Increment:
			expr = fmt.Sprintf(
				"jsonb_set(%s, '%s', to_jsonb(COALESCE((body#>>'{%s}')::bigint, 0) + %d))",
				expr, jsonPath, strings.ReplaceAll(k, ".", ","), tv.By,
			)
		case store.ServerTimestamp:
			expr = fmt.Sprintf("jsonb_set(%s, '%s', to_jsonb(to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD\"T\"HH24:MI:SS.US000\"Z\"')))", expr, jsonPath)
		default:
			raw, err := json.Marshal(encodeValue(v))
			if err != nil {
				return fmt.Errorf("encode field %s: %w", k, err)
			}
			expr = fmt.Sprintf("jsonb_set(%s, '%s', $%d::jsonb)", expr, jsonPath, n)
			args = append(args, string(raw))
			n++
		}
	}

	sqlText := fmt.Sprintf(
		"UPDATE documents SET body = %s, updated_at = now() WHERE collection = $%d AND parent_id = $%d AND id = $%d",
		expr, n, n+1, n+2,
	)
	args = append(args, p.Collection, p.Parent, id)

	tag, err := q.Exec(ctx, sqlText, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// encodeValue normalizes Go values into their JSONB representation; times use
// the fixed-width layout so range filters and cursors compare correctly.
func encodeValue(v any) any {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC().Format(timeLayout)
	case store.Increment:
		return tv.By
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = encodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = encodeValue(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = encodeValue(e)
		}
		return out
	default:
		return v
	}
}

func encodeScalar(v any) string {
	switch tv := encodeValue(v).(type) {
	case string:
		return tv
	default:
		return fmt.Sprintf("%v", tv)
	}
}

func containmentJSON(field string, value any) (string, error) {
	raw, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func newDocID() string {
	return uuid.NewString()
}
