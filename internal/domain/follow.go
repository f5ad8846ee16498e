package domain

import (
	"time"

	"github.com/cropside/feed-engine/internal/store"
)

// FollowEdge is one half of a follow relation. Edges are kept symmetrically: a
// follow writes a following record under the follower and a followers record
// under the followee, plus both counter increments, in one atomic batch.
type FollowEdge struct {
	// UserID of the user on the far end of the edge (the record's document id).
	UserID    string
	User      AuthorSummary
	CreatedAt time.Time
}

func (e FollowEdge) Doc() map[string]any {
	return map[string]any{
		"user":      e.User.Doc(),
		"createdAt": e.CreatedAt,
	}
}

// DecodeFollowEdge maps a following/followers document into an edge.
func DecodeFollowEdge(doc *store.Document) (*FollowEdge, error) {
	user := authorFromMap(doc.Map("user"))
	if user.ID == "" {
		return nil, Malformed(doc.Path.Collection, doc.ID, "missing user summary")
	}
	return &FollowEdge{
		UserID:    doc.ID,
		User:      user,
		CreatedAt: doc.Time("createdAt"),
	}, nil
}
