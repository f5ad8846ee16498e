package domain

import (
	"time"

	"github.com/cropside/feed-engine/internal/store"
)

type StoryVisibility string

const (
	StoryVisibilityPublic    StoryVisibility = "public"
	StoryVisibilityFollowers StoryVisibility = "followers"
)

type TextOverlay struct {
	Text string
	// X and Y are normalized screen positions in [0,1].
	X float64
	Y float64
}

// Story expiry is fixed at creation (createdAt + TTL) and enforced as a read
// filter, never by a background sweep.
type Story struct {
	ID           string
	Author       AuthorSummary
	Media        MediaItem
	Overlay      *TextOverlay
	LocationName string
	Visibility   StoryVisibility

	ViewsCount int64
	LikesCount int64

	ViewedByMe bool
	LikedByMe  bool

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the story is past its fixed expiry at the given
// read time.
func (s *Story) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// UserStories groups one author's live stories for the story bar, newest
// first.
type UserStories struct {
	Author             AuthorSummary
	Stories            []*Story
	HasUnviewedStories bool
	LatestStoryTime    time.Time
}

func (s *Story) Doc() map[string]any {
	data := map[string]any{
		"author":     s.Author.Doc(),
		"authorId":   s.Author.ID,
		"media":      map[string]any{"url": s.Media.URL, "kind": s.Media.Kind, "thumbnailUrl": s.Media.ThumbnailURL},
		"visibility": string(s.Visibility),
		"viewsCount": s.ViewsCount,
		"likesCount": s.LikesCount,
		"createdAt":  s.CreatedAt,
		"expiresAt":  s.ExpiresAt,
	}
	if s.Overlay != nil {
		data["overlay"] = map[string]any{"text": s.Overlay.Text, "x": s.Overlay.X, "y": s.Overlay.Y}
	}
	if s.LocationName != "" {
		data["locationName"] = s.LocationName
	}
	return data
}

// DecodeStory maps a stories document into a Story.
func DecodeStory(doc *store.Document) (*Story, error) {
	author := authorFromMap(doc.Map("author"))
	if author.ID == "" {
		return nil, Malformed("stories", doc.ID, "missing author id")
	}

	media := doc.Map("media")
	url, _ := media["url"].(string)
	if url == "" {
		return nil, Malformed("stories", doc.ID, "missing media url")
	}

	expiresAt := doc.Time("expiresAt")
	if expiresAt.IsZero() {
		return nil, Malformed("stories", doc.ID, "missing expiresAt")
	}

	kind, _ := media["kind"].(string)
	thumb, _ := media["thumbnailUrl"].(string)

	visibility := StoryVisibility(doc.String("visibility"))
	if visibility != StoryVisibilityFollowers {
		visibility = StoryVisibilityPublic
	}

	s := &Story{
		ID:           doc.ID,
		Author:       author,
		Media:        MediaItem{URL: url, Kind: kind, ThumbnailURL: thumb},
		LocationName: doc.String("locationName"),
		Visibility:   visibility,
		ViewsCount:   doc.Int64("viewsCount"),
		LikesCount:   doc.Int64("likesCount"),
		CreatedAt:    doc.Time("createdAt"),
		ExpiresAt:    expiresAt,
	}

	if o := doc.Map("overlay"); o != nil {
		text, _ := o["text"].(string)
		x, _ := floatFrom(o["x"])
		y, _ := floatFrom(o["y"])
		s.Overlay = &TextOverlay{Text: text, X: x, Y: y}
	}

	return s, nil
}
