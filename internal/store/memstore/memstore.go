package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cropside/feed-engine/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Store is an in-memory implementation of store.Client. It backs the memory
// driver and every test in the repository. Writes can be failure-injected
// through SetWriteHook, which is consulted for all staged writes of a batch
// before any of them applies, so a failing hook observes batch atomicity.
type Store struct {
	mu    sync.RWMutex
	cols  map[string]map[string]*document
	clock clockwork.Clock

	hookMu sync.RWMutex
	hook   WriteHook
}

// WriteHook is invoked once per individual write with the target location.
// Returning an error fails the whole operation (and the whole batch).
type WriteHook func(p store.Path, id string) error

type document struct {
	data       map[string]any
	createTime int64
	updateTime int64
}

func New(clock clockwork.Clock) *Store {
	return &Store{
		cols:  make(map[string]map[string]*document),
		clock: clock,
	}
}

var _ store.Client = (*Store)(nil)

func (s *Store) SetWriteHook(hook WriteHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hook = hook
}

func (s *Store) runHook(p store.Path, id string) error {
	s.hookMu.RLock()
	hook := s.hook
	s.hookMu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(p, id)
}

func colKey(p store.Path) string {
	return p.Collection + "|" + p.Parent
}

func (s *Store) Get(ctx context.Context, p store.Path, id string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.cols[colKey(p)][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.toPublic(p, id, doc), nil
}

func (s *Store) Create(ctx context.Context, p store.Path, data map[string]any) (*store.Document, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, p, id, data); err != nil {
		return nil, err
	}
	return s.Get(ctx, p, id)
}

func (s *Store) Set(ctx context.Context, p store.Path, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.runHook(p, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applySet(p, id, data)
	return nil
}

func (s *Store) Update(ctx context.Context, p store.Path, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.runHook(p, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyUpdate(p, id, fields)
}

func (s *Store) Delete(ctx context.Context, p store.Path, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.runHook(p, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cols[colKey(p)], id)
	return nil
}

func (s *Store) RunQuery(ctx context.Context, q store.Query) ([]*store.Document, *store.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*store.Document
	for id, doc := range s.cols[colKey(q.Path)] {
		pub := s.toPublic(q.Path, id, doc)
		if matchesFilters(pub, q.Filters) {
			matched = append(matched, pub)
		}
	}

	if q.OrderBy != "" {
		sort.Slice(matched, func(i, j int) bool {
			c := store.CompareOrderValues(matched[i].Data[q.OrderBy], matched[j].Data[q.OrderBy])
			if c == 0 {
				if q.Desc {
					return matched[i].ID > matched[j].ID
				}
				return matched[i].ID < matched[j].ID
			}
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	if q.StartAfter != nil {
		idx := -1
		for i, doc := range matched {
			if doc.ID == q.StartAfter.DocID {
				idx = i
				break
			}
		}
		if idx >= 0 {
			matched = matched[idx+1:]
		} else {
			// Cursor document vanished; resume by order value instead.
			matched = resumeByValue(matched, q)
		}
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	if len(matched) == 0 {
		return nil, nil, nil
	}

	last := matched[len(matched)-1]
	cursor := &store.Cursor{OrderValue: last.Data[q.OrderBy], DocID: last.ID}
	return matched, cursor, nil
}

func (s *Store) Batch() store.WriteBatch {
	return &batch{store: s}
}

type batchOp struct {
	kind   string // set, update, delete
	path   store.Path
	id     string
	data   map[string]any
	fields map[string]any
}

type batch struct {
	store *Store
	ops   []batchOp
}

var _ store.WriteBatch = (*batch)(nil)

func (b *batch) Set(p store.Path, id string, data map[string]any) store.WriteBatch {
	b.ops = append(b.ops, batchOp{kind: "set", path: p, id: id, data: data})
	return b
}

func (b *batch) Update(p store.Path, id string, fields map[string]any) store.WriteBatch {
	b.ops = append(b.ops, batchOp{kind: "update", path: p, id: id, fields: fields})
	return b
}

func (b *batch) Delete(p store.Path, id string) store.WriteBatch {
	b.ops = append(b.ops, batchOp{kind: "delete", path: p, id: id})
	return b
}

// Commit applies all staged writes or none: every write hook runs and every
// update target is validated before the first mutation, mirroring a
// transactional backend refusing the whole batch.
func (b *batch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range b.ops {
		if err := b.store.runHook(op.path, op.id); err != nil {
			return err
		}
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	// An update of a missing document fails the whole batch. Existence is
	// evaluated in staging order, so an update may target a document set (or
	// lose one deleted) earlier in the same batch.
	staged := make(map[string]bool, len(b.ops))
	for _, op := range b.ops {
		key := colKey(op.path) + "|" + op.id
		switch op.kind {
		case "set":
			staged[key] = true
		case "delete":
			staged[key] = false
		case "update":
			exists, seen := staged[key]
			if !seen {
				_, exists = b.store.cols[colKey(op.path)][op.id]
			}
			if !exists {
				return store.ErrNotFound
			}
		}
	}

	for _, op := range b.ops {
		switch op.kind {
		case "set":
			b.store.applySet(op.path, op.id, op.data)
		case "update":
			if err := b.store.applyUpdate(op.path, op.id, op.fields); err != nil {
				return err
			}
		case "delete":
			delete(b.store.cols[colKey(op.path)], op.id)
		}
	}
	return nil
}

func (s *Store) applySet(p store.Path, id string, data map[string]any) {
	key := colKey(p)
	if s.cols[key] == nil {
		s.cols[key] = make(map[string]*document)
	}
	now := s.clock.Now().UTC()
	resolved := make(map[string]any, len(data))
	for k, v := range data {
		if _, ok := v.(store.ServerTimestamp); ok {
			resolved[k] = now
			continue
		}
		resolved[k] = cloneValue(v)
	}
	doc := &document{data: resolved, createTime: now.UnixNano(), updateTime: now.UnixNano()}
	s.cols[key][id] = doc
}

func (s *Store) applyUpdate(p store.Path, id string, fields map[string]any) error {
	doc, ok := s.cols[colKey(p)][id]
	if !ok {
		return store.ErrNotFound
	}
	now := s.clock.Now().UTC()
	for k, v := range fields {
		container, leaf := nestedContainer(doc.data, k)
		switch tv := v.(type) {
		case store.Increment:
			container[leaf] = store.CoerceInt64(container[leaf]) + tv.By
		case store.ServerTimestamp:
			container[leaf] = now
		default:
			container[leaf] = cloneValue(v)
		}
	}
	doc.updateTime = now.UnixNano()
	return nil
}

// nestedContainer resolves a dotted field path to the map holding its leaf,
// creating intermediate maps as needed.
func nestedContainer(data map[string]any, path string) (map[string]any, string) {
	parts := strings.Split(path, ".")
	container := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := container[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			container[part] = next
		}
		container = next
	}
	return container, parts[len(parts)-1]
}

func (s *Store) toPublic(p store.Path, id string, doc *document) *store.Document {
	data := make(map[string]any, len(doc.data))
	for k, v := range doc.data {
		data[k] = cloneValue(v)
	}
	return &store.Document{
		ID:         id,
		Path:       p,
		Data:       data,
		CreateTime: nanoTime(doc.createTime),
		UpdateTime: nanoTime(doc.updateTime),
	}
}

func matchesFilters(doc *store.Document, filters []store.Filter) bool {
	for _, f := range filters {
		v := doc.Data[f.Field]
		switch f.Op {
		case store.OpEq:
			if !valuesEqual(v, f.Value) {
				return false
			}
		case store.OpLt:
			if store.CompareOrderValues(v, f.Value) >= 0 {
				return false
			}
		case store.OpGt:
			if store.CompareOrderValues(v, f.Value) <= 0 {
				return false
			}
		case store.OpIn:
			values, ok := f.Value.([]string)
			if !ok {
				return false
			}
			sv, _ := v.(string)
			found := false
			for _, candidate := range values {
				if candidate == sv {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case store.OpArrayContains:
			found := false
			switch arr := v.(type) {
			case []string:
				for _, e := range arr {
					if valuesEqual(e, f.Value) {
						found = true
						break
					}
				}
			case []any:
				for _, e := range arr {
					if valuesEqual(e, f.Value) {
						found = true
						break
					}
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return store.CompareOrderValues(a, b) == 0
	}
}

func resumeByValue(matched []*store.Document, q store.Query) []*store.Document {
	for i, doc := range matched {
		c := store.CompareOrderValues(doc.Data[q.OrderBy], q.StartAfter.OrderValue)
		if (q.Desc && c < 0) || (!q.Desc && c > 0) {
			return matched[i:]
		}
	}
	return nil
}

func nanoTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(tv))
		copy(out, tv)
		return out
	case []map[string]any:
		out := make([]map[string]any, len(tv))
		for i, e := range tv {
			out[i] = cloneValue(e).(map[string]any)
		}
		return out
	default:
		return v
	}
}
