package domain

import (
	"time"

	"github.com/cropside/feed-engine/internal/store"
)

// Comment supports one level of threading: a reply's ParentID names a root
// comment, and replies cannot themselves be replied to. Deletion is always a
// soft delete carrying a reason.
type Comment struct {
	ID       string
	PostID   string
	Author   AuthorSummary
	Text     string
	Voice    *VoiceCaption
	ParentID string

	RepliesCount int64
	LikesCount   int64
	LikedByMe    bool

	ExpertAnswer bool
	BestAnswer   bool

	Active         bool
	DeletionReason string

	CreatedAt time.Time
}

func (c *Comment) Doc() map[string]any {
	data := map[string]any{
		"postId":       c.PostID,
		"author":       c.Author.Doc(),
		"text":         c.Text,
		"repliesCount": c.RepliesCount,
		"likesCount":   c.LikesCount,
		"expertAnswer": c.ExpertAnswer,
		"bestAnswer":   c.BestAnswer,
		"active":       c.Active,
		"createdAt":    c.CreatedAt,
	}
	if c.Voice != nil {
		data["voice"] = map[string]any{"url": c.Voice.URL, "durationSec": c.Voice.DurationSec}
	}
	if c.ParentID != "" {
		data["parentId"] = c.ParentID
	}
	return data
}

// DecodeComment maps a comments document into a Comment.
func DecodeComment(doc *store.Document) (*Comment, error) {
	author := authorFromMap(doc.Map("author"))
	if author.ID == "" {
		return nil, Malformed("comments", doc.ID, "missing author id")
	}

	c := &Comment{
		ID:             doc.ID,
		PostID:         doc.String("postId"),
		Author:         author,
		Text:           doc.String("text"),
		ParentID:       doc.String("parentId"),
		RepliesCount:   doc.Int64("repliesCount"),
		LikesCount:     doc.Int64("likesCount"),
		ExpertAnswer:   doc.Bool("expertAnswer"),
		BestAnswer:     doc.Bool("bestAnswer"),
		Active:         doc.Bool("active"),
		DeletionReason: doc.String("deletionReason"),
		CreatedAt:      doc.Time("createdAt"),
	}

	if v := doc.Map("voice"); v != nil {
		url, _ := v["url"].(string)
		c.Voice = &VoiceCaption{URL: url, DurationSec: store.CoerceInt64(v["durationSec"])}
	}

	if c.Text == "" && c.Voice == nil {
		return nil, Malformed("comments", doc.ID, "neither text nor voice content")
	}

	return c, nil
}
