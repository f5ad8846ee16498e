package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/pkg/formatter"
)

type authorResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Handle    string `json:"handle,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role,omitempty"`
	Verified  bool   `json:"verified"`
}

func toAuthorResponse(a domain.AuthorSummary) authorResponse {
	return authorResponse{
		ID:        a.ID,
		Name:      a.Name,
		Handle:    a.Handle,
		AvatarURL: a.AvatarURL,
		Role:      a.Role,
		Verified:  a.Verified,
	}
}

type mediaResponse struct {
	URL          string `json:"url"`
	Kind         string `json:"kind,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

type postResponse struct {
	ID            string          `json:"id"`
	Author        authorResponse  `json:"author"`
	Kind          string          `json:"kind"`
	Body          string          `json:"body,omitempty"`
	Media         []mediaResponse `json:"media,omitempty"`
	CropTags      []string        `json:"cropTags,omitempty"`
	Hashtags      []string        `json:"hashtags,omitempty"`
	LikesCount    int64           `json:"likesCount"`
	LikesLabel    string          `json:"likesLabel"`
	CommentsCount int64           `json:"commentsCount"`
	SavesCount    int64           `json:"savesCount"`
	IsLikedByMe   bool            `json:"isLikedByMe"`
	IsSavedByMe   bool            `json:"isSavedByMe"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toPostResponse(p *domain.Post) postResponse {
	return postResponse{
		ID:     p.ID,
		Author: toAuthorResponse(p.Author),
		Kind:   string(p.Kind),
		Body:   p.Body,
		Media: lo.Map(p.Media, func(m domain.MediaItem, _ int) mediaResponse {
			return mediaResponse{URL: m.URL, Kind: m.Kind, ThumbnailURL: m.ThumbnailURL}
		}),
		CropTags:      p.CropTags,
		Hashtags:      p.Hashtags,
		LikesCount:    p.LikesCount,
		LikesLabel:    formatter.CompactCount(p.LikesCount),
		CommentsCount: p.CommentsCount,
		SavesCount:    p.SavesCount,
		IsLikedByMe:   p.LikedByMe,
		IsSavedByMe:   p.SavedByMe,
		CreatedAt:     p.CreatedAt,
	}
}

func toPostResponses(posts []*domain.Post) []postResponse {
	return lo.Map(posts, func(p *domain.Post, _ int) postResponse { return toPostResponse(p) })
}

type storyResponse struct {
	ID           string         `json:"id"`
	Author       authorResponse `json:"author"`
	Media        mediaResponse  `json:"media"`
	LocationName string         `json:"locationName,omitempty"`
	Visibility   string         `json:"visibility"`
	ViewsCount   int64          `json:"viewsCount"`
	LikesCount   int64          `json:"likesCount"`
	IsViewedByMe bool           `json:"isViewedByMe"`
	IsLikedByMe  bool           `json:"isLikedByMe"`
	CreatedAt    time.Time      `json:"createdAt"`
	ExpiresAt    time.Time      `json:"expiresAt"`
}

func toStoryResponse(s *domain.Story) storyResponse {
	return storyResponse{
		ID:           s.ID,
		Author:       toAuthorResponse(s.Author),
		Media:        mediaResponse{URL: s.Media.URL, Kind: s.Media.Kind, ThumbnailURL: s.Media.ThumbnailURL},
		LocationName: s.LocationName,
		Visibility:   string(s.Visibility),
		ViewsCount:   s.ViewsCount,
		LikesCount:   s.LikesCount,
		IsViewedByMe: s.ViewedByMe,
		IsLikedByMe:  s.LikedByMe,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

func toStoryResponses(list []*domain.Story) []storyResponse {
	return lo.Map(list, func(s *domain.Story, _ int) storyResponse { return toStoryResponse(s) })
}

type userStoriesResponse struct {
	Author             authorResponse  `json:"author"`
	Stories            []storyResponse `json:"stories"`
	HasUnviewedStories bool            `json:"hasUnviewedStories"`
	LatestStoryTime    time.Time       `json:"latestStoryTime"`
}

func toStoryBarResponse(bar []*domain.UserStories) []userStoriesResponse {
	return lo.Map(bar, func(g *domain.UserStories, _ int) userStoriesResponse {
		return userStoriesResponse{
			Author:             toAuthorResponse(g.Author),
			Stories:            toStoryResponses(g.Stories),
			HasUnviewedStories: g.HasUnviewedStories,
			LatestStoryTime:    g.LatestStoryTime,
		}
	})
}

type commentResponse struct {
	ID           string         `json:"id"`
	PostID       string         `json:"postId"`
	Author       authorResponse `json:"author"`
	Text         string         `json:"text,omitempty"`
	ParentID     string         `json:"parentId,omitempty"`
	RepliesCount int64          `json:"repliesCount"`
	LikesCount   int64          `json:"likesCount"`
	IsLikedByMe  bool           `json:"isLikedByMe"`
	ExpertAnswer bool           `json:"expertAnswer"`
	BestAnswer   bool           `json:"bestAnswer"`
	Active       bool           `json:"active"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func toCommentResponse(c *domain.Comment) commentResponse {
	resp := commentResponse{
		ID:           c.ID,
		PostID:       c.PostID,
		Author:       toAuthorResponse(c.Author),
		ParentID:     c.ParentID,
		RepliesCount: c.RepliesCount,
		LikesCount:   c.LikesCount,
		IsLikedByMe:  c.LikedByMe,
		ExpertAnswer: c.ExpertAnswer,
		BestAnswer:   c.BestAnswer,
		Active:       c.Active,
		CreatedAt:    c.CreatedAt,
	}
	if c.Active {
		resp.Text = c.Text
	}
	return resp
}
