package domain

import (
	"time"

	"github.com/cropside/feed-engine/internal/store"
)

// AuthorSummary is the denormalized author block embedded into posts, stories,
// join records and fan-out documents at write time.
type AuthorSummary struct {
	ID        string
	Name      string
	Handle    string
	AvatarURL string
	Role      string
	Verified  bool
}

// Profile is the full user document.
type Profile struct {
	AuthorSummary
	FollowersCount int64
	FollowingCount int64

	// FollowedByMe is computed per viewer at read time; it is never stored.
	FollowedByMe bool

	CreatedAt time.Time
}

func (a AuthorSummary) Doc() map[string]any {
	return map[string]any{
		"id":        a.ID,
		"name":      a.Name,
		"handle":    a.Handle,
		"avatarUrl": a.AvatarURL,
		"role":      a.Role,
		"verified":  a.Verified,
	}
}

func authorFromMap(m map[string]any) AuthorSummary {
	if m == nil {
		return AuthorSummary{}
	}
	a := AuthorSummary{}
	a.ID, _ = m["id"].(string)
	a.Name, _ = m["name"].(string)
	a.Handle, _ = m["handle"].(string)
	a.AvatarURL, _ = m["avatarUrl"].(string)
	a.Role, _ = m["role"].(string)
	a.Verified, _ = m["verified"].(bool)
	return a
}

// DecodeProfile maps a users document into a Profile.
func DecodeProfile(doc *store.Document) (*Profile, error) {
	if doc.String("name") == "" {
		return nil, Malformed("users", doc.ID, "missing name")
	}
	return &Profile{
		AuthorSummary: AuthorSummary{
			ID:        doc.ID,
			Name:      doc.String("name"),
			Handle:    doc.String("handle"),
			AvatarURL: doc.String("avatarUrl"),
			Role:      doc.String("role"),
			Verified:  doc.Bool("verified"),
		},
		FollowersCount: doc.Int64("followersCount"),
		FollowingCount: doc.Int64("followingCount"),
		CreatedAt:      doc.Time("createdAt"),
	}, nil
}
