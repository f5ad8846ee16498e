package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	postRepo "github.com/cropside/feed-engine/internal/repositories/post"
	"github.com/cropside/feed-engine/internal/repositories/feeditem"
	"github.com/cropside/feed-engine/internal/store"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
)

const (
	MinPageSize = 1
	MaxPageSize = 50
)

type mode int

const (
	modePersonalized mode = iota
	modeFallbackPublic
)

// Paginator walks one viewer's feed page by page. It owns the pagination
// cursors and the first-page cache; callers must issue GetPage sequentially.
// When the personalized fan-out feed is empty on page zero it falls back to
// the public timeline for the remainder of the walk.
type Paginator struct {
	viewerID string
	feedItems feeditem.Repository
	posts     postRepo.Repository
	checker   *existence.Checker
	log       logger.Logger

	mode               mode
	personalizedCursor *store.Cursor
	publicCursor       *store.Cursor
	firstPage          []*domain.Post
}

func NewPaginator(
	viewerID string,
	feedItems feeditem.Repository,
	posts postRepo.Repository,
	checker *existence.Checker,
	log logger.Logger,
) *Paginator {
	return &Paginator{
		viewerID:  viewerID,
		feedItems: feedItems,
		posts:     posts,
		checker:   checker,
		log:       log.WithComponent("FeedPaginator"),
	}
}

// GetPage returns one page of posts, newest first. Out-of-range pageNumber or
// pageSize yields an empty page rather than an error. Enrichment failures
// degrade individual posts to their last written values; a failure of the
// primary query propagates.
func (p *Paginator) GetPage(ctx context.Context, pageNumber, pageSize int, forceRefresh bool) ([]*domain.Post, error) {
	if pageSize < MinPageSize || pageSize > MaxPageSize || pageNumber < 0 {
		return []*domain.Post{}, nil
	}

	if pageNumber == 0 {
		if forceRefresh {
			p.reset()
		} else if p.firstPage != nil {
			return p.firstPage, nil
		}
	}

	var (
		posts  []*domain.Post
		cursor *store.Cursor
		err    error
	)

	switch p.mode {
	case modePersonalized:
		if pageNumber > 0 && p.personalizedCursor == nil {
			// Out-of-order page walk; pagination only resumes from a cursor.
			return []*domain.Post{}, nil
		}
		after := p.personalizedCursor
		if pageNumber == 0 {
			after = nil
		}
		posts, cursor, err = p.feedItems.Page(ctx, p.viewerID, after, pageSize)
		if err != nil {
			return nil, feedUnavailable(err)
		}
		if len(posts) == 0 {
			if pageNumber > 0 {
				// An exhausted personalized walk stays personalized.
				return []*domain.Post{}, nil
			}
			p.mode = modeFallbackPublic
			p.publicCursor = nil
			posts, cursor, err = p.posts.ListPublic(ctx, nil, pageSize)
			if err != nil {
				return nil, feedUnavailable(err)
			}
			p.publicCursor = cursor
		} else {
			p.personalizedCursor = cursor
		}

	case modeFallbackPublic:
		if pageNumber > 0 && p.publicCursor == nil {
			return []*domain.Post{}, nil
		}
		after := p.publicCursor
		if pageNumber == 0 {
			after = nil
		}
		posts, cursor, err = p.posts.ListPublic(ctx, after, pageSize)
		if err != nil {
			return nil, feedUnavailable(err)
		}
		p.publicCursor = cursor
	}

	p.enrich(ctx, posts)

	if pageNumber == 0 && len(posts) > 0 {
		p.firstPage = posts
	}
	return posts, nil
}

// Refresh clears cursors and the first-page cache and returns a fresh first
// page at the given size.
func (p *Paginator) Refresh(ctx context.Context, pageSize int) ([]*domain.Post, error) {
	return p.GetPage(ctx, 0, pageSize, true)
}

func (p *Paginator) source() string {
	if p.mode == modeFallbackPublic {
		return "public"
	}
	return "personalized"
}

func (p *Paginator) reset() {
	p.mode = modePersonalized
	p.personalizedCursor = nil
	p.publicCursor = nil
	p.firstPage = nil
}

// enrich annotates a fetched batch with the viewer's like/save state and
// refreshes each post's denormalized counters from the authoritative post
// record. The fan-out entries carry counters frozen at publish time, so the
// re-read is what keeps like counts honest. Every step degrades per post.
func (p *Paginator) enrich(ctx context.Context, posts []*domain.Post) {
	if len(posts) == 0 {
		return
	}

	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.ID)
	}

	var liked, saved map[string]bool
	if p.viewerID != "" {
		liked = p.checker.Existing(ctx, ids, existence.PostLikes(p.viewerID))
		saved = p.checker.Existing(ctx, ids, existence.PostSaves(p.viewerID))
	}

	var wg sync.WaitGroup
	for _, post := range posts {
		post.LikedByMe = liked[post.ID]
		post.SavedByMe = saved[post.ID]

		wg.Add(1)
		go func(post *domain.Post) {
			defer wg.Done()
			counters, err := p.posts.GetCounters(ctx, post.ID)
			if err != nil {
				p.log.Debug("Counter refresh degraded to snapshot values", "post_id", post.ID, "error", err)
				return
			}
			post.LikesCount = counters.Likes
			post.CommentsCount = counters.Comments
			post.SavesCount = counters.Saves
		}(post)
	}
	wg.Wait()
}

func feedUnavailable(err error) error {
	if apperrors.IsTimeout(err) {
		return apperrors.Wrap(err, "load feed page")
	}
	return apperrors.WrapWithCode(errors.Join(apperrors.ErrStoreUnavailable, err), "FEED_UNAVAILABLE", "load feed page")
}
