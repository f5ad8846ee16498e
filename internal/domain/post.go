package domain

import (
	"time"

	"github.com/cropside/feed-engine/internal/store"
)

type PostKind string

const (
	PostKindNormal   PostKind = "normal"
	PostKindQuestion PostKind = "question"
)

type MediaItem struct {
	URL          string
	Kind         string // image or video
	ThumbnailURL string
}

type VoiceCaption struct {
	URL         string
	DurationSec int64
}

type Location struct {
	Name string
	Lat  *float64
	Lng  *float64
}

// QuestionMeta is present only on question posts.
type QuestionMeta struct {
	TargetExpertise string
	TargetExpertIDs []string
	TargetExperts   []AuthorSummary
	Answered        bool
	BestAnswerID    string
}

// Post counters are server-authoritative and only ever move by atomic
// increments. LikedByMe/SavedByMe are computed per viewer at read time and are
// never stored on the document.
type Post struct {
	ID           string
	Author       AuthorSummary
	Kind         PostKind
	Body         string
	Media        []MediaItem
	VoiceCaption *VoiceCaption
	CropTags     []string
	Hashtags     []string
	Location     *Location
	Question     *QuestionMeta

	LikesCount    int64
	CommentsCount int64
	SavesCount    int64

	LikedByMe bool
	SavedByMe bool

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Post) Doc() map[string]any {
	data := map[string]any{
		"author":        p.Author.Doc(),
		"kind":          string(p.Kind),
		"body":          p.Body,
		"cropTags":      p.CropTags,
		"hashtags":      p.Hashtags,
		"likesCount":    p.LikesCount,
		"commentsCount": p.CommentsCount,
		"savesCount":    p.SavesCount,
		"active":        p.Active,
		"createdAt":     p.CreatedAt,
		"updatedAt":     p.UpdatedAt,
	}
	if len(p.Media) > 0 {
		media := make([]map[string]any, 0, len(p.Media))
		for _, m := range p.Media {
			media = append(media, map[string]any{"url": m.URL, "kind": m.Kind, "thumbnailUrl": m.ThumbnailURL})
		}
		data["media"] = media
	}
	if p.VoiceCaption != nil {
		data["voiceCaption"] = map[string]any{"url": p.VoiceCaption.URL, "durationSec": p.VoiceCaption.DurationSec}
	}
	if p.Location != nil {
		loc := map[string]any{"name": p.Location.Name}
		if p.Location.Lat != nil && p.Location.Lng != nil {
			loc["lat"] = *p.Location.Lat
			loc["lng"] = *p.Location.Lng
		}
		data["location"] = loc
	}
	if p.Question != nil {
		experts := make([]map[string]any, 0, len(p.Question.TargetExperts))
		for _, e := range p.Question.TargetExperts {
			experts = append(experts, e.Doc())
		}
		data["question"] = map[string]any{
			"targetExpertise": p.Question.TargetExpertise,
			"targetExpertIds": p.Question.TargetExpertIDs,
			"targetExperts":   experts,
			"answered":        p.Question.Answered,
			"bestAnswerId":    p.Question.BestAnswerID,
		}
	}
	return data
}

// DecodePost maps a posts document (or a fan-out feed snapshot of one) into a
// Post.
func DecodePost(doc *store.Document) (*Post, error) {
	author := authorFromMap(doc.Map("author"))
	if author.ID == "" {
		return nil, Malformed("posts", doc.ID, "missing author id")
	}
	createdAt := doc.Time("createdAt")
	if createdAt.IsZero() {
		return nil, Malformed("posts", doc.ID, "missing createdAt")
	}

	kind := PostKind(doc.String("kind"))
	if kind == "" {
		kind = PostKindNormal
	}

	p := &Post{
		ID:            doc.ID,
		Author:        author,
		Kind:          kind,
		Body:          doc.String("body"),
		CropTags:      doc.StringSlice("cropTags"),
		Hashtags:      doc.StringSlice("hashtags"),
		LikesCount:    doc.Int64("likesCount"),
		CommentsCount: doc.Int64("commentsCount"),
		SavesCount:    doc.Int64("savesCount"),
		Active:        doc.Bool("active"),
		CreatedAt:     createdAt,
		UpdatedAt:     doc.Time("updatedAt"),
	}

	// Fan-out snapshots carry the post id explicitly since the feed document
	// id belongs to the feed entry.
	if postID := doc.String("postId"); postID != "" {
		p.ID = postID
	}

	for _, m := range doc.MapSlice("media") {
		url, _ := m["url"].(string)
		if url == "" {
			return nil, Malformed("posts", doc.ID, "media item without url")
		}
		kind, _ := m["kind"].(string)
		thumb, _ := m["thumbnailUrl"].(string)
		p.Media = append(p.Media, MediaItem{URL: url, Kind: kind, ThumbnailURL: thumb})
	}

	if vc := doc.Map("voiceCaption"); vc != nil {
		url, _ := vc["url"].(string)
		p.VoiceCaption = &VoiceCaption{URL: url, DurationSec: store.CoerceInt64(vc["durationSec"])}
	}

	if loc := doc.Map("location"); loc != nil {
		l := &Location{}
		l.Name, _ = loc["name"].(string)
		if lat, ok := floatFrom(loc["lat"]); ok {
			if lng, ok := floatFrom(loc["lng"]); ok {
				l.Lat, l.Lng = &lat, &lng
			}
		}
		p.Location = l
	}

	if q := doc.Map("question"); q != nil {
		meta := &QuestionMeta{}
		meta.TargetExpertise, _ = q["targetExpertise"].(string)
		meta.TargetExpertIDs = stringsFrom(q["targetExpertIds"])
		meta.Answered, _ = q["answered"].(bool)
		meta.BestAnswerID, _ = q["bestAnswerId"].(string)
		for _, e := range mapsFrom(q["targetExperts"]) {
			meta.TargetExperts = append(meta.TargetExperts, authorFromMap(e))
		}
		p.Question = meta
	}

	return p, nil
}

func floatFrom(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func stringsFrom(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func mapsFrom(v any) []map[string]any {
	switch s := v.(type) {
	case []map[string]any:
		return s
	case []any:
		out := make([]map[string]any, 0, len(s))
		for _, e := range s {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}
