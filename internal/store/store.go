package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrBadQuery  = errors.New("bad query")
	ErrBadCursor = errors.New("bad cursor")
)

// Path names a collection. Root collections have an empty Parent; subcollections
// carry the parent document id and a dotted collection name, e.g. "posts.likes".
type Path struct {
	Collection string
	Parent     string
}

// Col returns the path of a root collection.
func Col(name string) Path {
	return Path{Collection: name}
}

// Sub returns the path of a subcollection under one parent document.
func Sub(parentCol, parentID, name string) Path {
	return Path{Collection: parentCol + "." + name, Parent: parentID}
}

// Document is a stored document together with its location and server times.
type Document struct {
	ID         string
	Path       Path
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// Cursor resumes an ordered query after a previously returned document.
type Cursor struct {
	OrderValue any
	DocID      string
}

// Filter ops understood by all backends.
const (
	OpEq            = "=="
	OpLt            = "<"
	OpGt            = ">"
	OpIn            = "in"
	OpArrayContains = "array-contains"
)

type Filter struct {
	Field string
	Op    string
	Value any
}

// Query describes an ordered, filtered, resumable range read.
type Query struct {
	Path       Path
	Filters    []Filter
	OrderBy    string
	Desc       bool
	StartAfter *Cursor
	Limit      int
}

// Increment is a field transform: the backend adds By to the current numeric
// value atomically. Counters are never read-modify-written through any other
// means.
type Increment struct {
	By int64
}

// ServerTimestamp is a field sentinel replaced by the backend's notion of now
// at write time.
type ServerTimestamp struct{}

//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock.go

// Client is the abstract transactional key-document store the engine runs
// against. Implementations: memstore (tests, single node), pgstore (Postgres
// JSONB), mongostore (MongoDB).
type Client interface {
	Get(ctx context.Context, p Path, id string) (*Document, error)
	// Create stores data under a generated id and returns the stored document.
	Create(ctx context.Context, p Path, data map[string]any) (*Document, error)
	Set(ctx context.Context, p Path, id string, data map[string]any) error
	// Update applies field updates to an existing document; values may be
	// Increment or ServerTimestamp transforms.
	Update(ctx context.Context, p Path, id string, fields map[string]any) error
	Delete(ctx context.Context, p Path, id string) error
	RunQuery(ctx context.Context, q Query) ([]*Document, *Cursor, error)
	// Batch starts an atomic multi-document write. Either every staged write
	// applies or none does.
	Batch() WriteBatch
}

// WriteBatch stages writes for a single atomic commit.
type WriteBatch interface {
	Set(p Path, id string, data map[string]any) WriteBatch
	Update(p Path, id string, fields map[string]any) WriteBatch
	Delete(p Path, id string) WriteBatch
	Commit(ctx context.Context) error
}
