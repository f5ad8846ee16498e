package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/pkg/logger"
)

// Store maps the abstract document store onto MongoDB. A subcollection path
// like posts.likes becomes the collection posts_likes with a parentId field;
// batches run inside a session transaction so multi-document writes commit
// atomically.
type Store struct {
	db     *mongo.Database
	logger logger.Logger
}

func New(db *mongo.Database, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithComponent("MongoStore"),
	}
}

var _ store.Client = (*Store)(nil)

func (s *Store) collection(p store.Path) *mongo.Collection {
	return s.db.Collection(strings.ReplaceAll(p.Collection, ".", "_"))
}

func scopeFilter(p store.Path, extra bson.M) bson.M {
	filter := bson.M{}
	if p.Parent != "" {
		filter["parentId"] = p.Parent
	}
	for k, v := range extra {
		filter[k] = v
	}
	return filter
}

func (s *Store) Get(ctx context.Context, p store.Path, id string) (*store.Document, error) {
	var raw bson.M
	err := s.collection(p).FindOne(ctx, scopeFilter(p, bson.M{"_id": id})).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return decodeDoc(p, raw), nil
}

func (s *Store) Create(ctx context.Context, p store.Path, data map[string]any) (*store.Document, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, p, id, data); err != nil {
		return nil, err
	}
	return s.Get(ctx, p, id)
}

func (s *Store) Set(ctx context.Context, p store.Path, id string, data map[string]any) error {
	doc := encodeDoc(p, id, data)
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection(p).ReplaceOne(ctx, scopeFilter(p, bson.M{"_id": id}), doc, opts)
	return err
}

func (s *Store) Update(ctx context.Context, p store.Path, id string, fields map[string]any) error {
	update := encodeUpdate(fields)
	res, err := s.collection(p).UpdateOne(ctx, scopeFilter(p, bson.M{"_id": id}), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, p store.Path, id string) error {
	_, err := s.collection(p).DeleteOne(ctx, scopeFilter(p, bson.M{"_id": id}))
	return err
}

func (s *Store) RunQuery(ctx context.Context, q store.Query) ([]*store.Document, *store.Cursor, error) {
	filter := scopeFilter(q.Path, nil)
	for _, f := range q.Filters {
		switch f.Op {
		case store.OpEq, store.OpArrayContains:
			// Mongo equality on an array field matches membership natively.
			filter[f.Field] = encodeValue(f.Value)
		case store.OpIn:
			filter[f.Field] = bson.M{"$in": f.Value}
		case store.OpLt:
			mergeRange(filter, f.Field, "$lt", encodeValue(f.Value))
		case store.OpGt:
			mergeRange(filter, f.Field, "$gt", encodeValue(f.Value))
		default:
			return nil, nil, store.ErrBadQuery
		}
	}

	findOpts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: dir}})

		if q.StartAfter != nil {
			op := "$gt"
			if q.Desc {
				op = "$lt"
			}
			orderValue := encodeValue(q.StartAfter.OrderValue)
			filter["$or"] = bson.A{
				bson.M{q.OrderBy: bson.M{op: orderValue}},
				bson.M{q.OrderBy: orderValue, "_id": bson.M{op: q.StartAfter.DocID}},
			}
		}
	}
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}

	cur, err := s.collection(q.Path).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, nil, err
	}
	defer cur.Close(ctx)

	var docs []*store.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, nil, err
		}
		docs = append(docs, decodeDoc(q.Path, raw))
	}
	if err := cur.Err(); err != nil {
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

type batchOp func(ctx context.Context) error

type batch struct {
	store *Store
	ops   []batchOp
}

var _ store.WriteBatch = (*batch)(nil)

func (b *batch) Set(p store.Path, id string, data map[string]any) store.WriteBatch {
	b.ops = append(b.ops, func(ctx context.Context) error {
		return b.store.Set(ctx, p, id, data)
	})
	return b
}

func (b *batch) Update(p store.Path, id string, fields map[string]any) store.WriteBatch {
	b.ops = append(b.ops, func(ctx context.Context) error {
		return b.store.Update(ctx, p, id, fields)
	})
	return b
}

func (b *batch) Delete(p store.Path, id string) store.WriteBatch {
	b.ops = append(b.ops, func(ctx context.Context) error {
		return b.store.Delete(ctx, p, id)
	})
	return b
}

func (b *batch) Commit(ctx context.Context) error {
	session, err := b.store.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range b.ops {
			if err := op(sc); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func encodeDoc(p store.Path, id string, data map[string]any) bson.M {
	doc := bson.M{"_id": id}
	if p.Parent != "" {
		doc["parentId"] = p.Parent
	}
	now := time.Now().UTC()
	for k, v := range data {
		if _, ok := v.(store.ServerTimestamp); ok {
			doc[k] = now
			continue
		}
		doc[k] = encodeValue(v)
	}
	if _, ok := doc["_createdAt"]; !ok {
		doc["_createdAt"] = now
	}
	doc["_updatedAt"] = now
	return doc
}

func encodeUpdate(fields map[string]any) bson.M {
	set := bson.M{}
	inc := bson.M{}
	currentDate := bson.M{"_updatedAt": true}
	for k, v := range fields {
		switch tv := v.(type) {
		case store.Increment:
			inc[k] = tv.By
		case store.ServerTimestamp:
			currentDate[k] = true
		default:
			set[k] = encodeValue(v)
		}
	}

	update := bson.M{"$currentDate": currentDate}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}

func encodeValue(v any) any {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC()
	case map[string]any:
		out := bson.M{}
		for k, e := range tv {
			out[k] = encodeValue(e)
		}
		return out
	case []map[string]any:
		out := bson.A{}
		for _, e := range tv {
			out = append(out, encodeValue(e))
		}
		return out
	case []any:
		out := bson.A{}
		for _, e := range tv {
			out = append(out, encodeValue(e))
		}
		return out
	default:
		return v
	}
}

func decodeDoc(p store.Path, raw bson.M) *store.Document {
	doc := &store.Document{Path: p, Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case "_id":
			doc.ID, _ = v.(string)
		case "parentId":
			// location metadata, not document data
		case "_createdAt":
			doc.CreateTime = decodeTime(v)
		case "_updatedAt":
			doc.UpdateTime = decodeTime(v)
		default:
			doc.Data[k] = decodeValue(v)
		}
	}
	return doc
}

func decodeValue(v any) any {
	switch tv := v.(type) {
	case primitive.DateTime:
		return tv.Time().UTC()
	case bson.M:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = decodeValue(e)
		}
		return out
	case bson.A:
		out := make([]any, 0, len(tv))
		for _, e := range tv {
			out = append(out, decodeValue(e))
		}
		return out
	default:
		return v
	}
}

func decodeTime(v any) time.Time {
	if t, ok := decodeValue(v).(time.Time); ok {
		return t
	}
	return time.Time{}
}

func mergeRange(filter bson.M, field, op string, value any) {
	if existing, ok := filter[field].(bson.M); ok {
		existing[op] = value
		return
	}
	filter[field] = bson.M{op: value}
}
