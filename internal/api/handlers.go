package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cropside/feed-engine/internal/auth"
	"github.com/cropside/feed-engine/internal/comments"
	"github.com/cropside/feed-engine/internal/domain"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/feed"
	"github.com/cropside/feed-engine/internal/interactions"
	"github.com/cropside/feed-engine/internal/posts"
	"github.com/cropside/feed-engine/internal/profiles"
	followRepo "github.com/cropside/feed-engine/internal/repositories/follow"
	storyRepo "github.com/cropside/feed-engine/internal/repositories/story"
	"github.com/cropside/feed-engine/internal/stories"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
	"github.com/cropside/feed-engine/pkg/logger"
)

type Handler struct {
	feed         *feed.Service
	stories      *stories.Aggregator
	storiesRepo  storyRepo.Repository
	interactions *interactions.Controller
	posts        *posts.Service
	comments     *comments.Service
	profiles     profiles.Provider
	follows      followRepo.Repository
	checker      *existence.Checker
	auth         auth.Provider
	log          logger.Logger
}

func NewHandler(
	feedService *feed.Service,
	storyAggregator *stories.Aggregator,
	storiesRepo storyRepo.Repository,
	controller *interactions.Controller,
	postService *posts.Service,
	commentService *comments.Service,
	profileProvider profiles.Provider,
	follows followRepo.Repository,
	checker *existence.Checker,
	authProvider auth.Provider,
	log logger.Logger,
) *Handler {
	return &Handler{
		feed:         feedService,
		stories:      storyAggregator,
		storiesRepo:  storiesRepo,
		interactions: controller,
		posts:        postService,
		comments:     commentService,
		profiles:     profileProvider,
		follows:      follows,
		checker:      checker,
		auth:         authProvider,
		log:          log.WithComponent("APIHandler"),
	}
}

func (h *Handler) viewerID(c *gin.Context) string {
	id, _ := h.auth.CurrentUserID(c.Request.Context())
	return id
}

// GetFeed serves one feed page. Anonymous viewers have an empty personalized
// source, so they land on the public fallback with no like annotations.
func (h *Handler) GetFeed(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "0"))
	refresh := c.Query("refresh") == "true"

	result, err := h.feed.GetFeedPage(c.Request.Context(), h.viewerID(c), page, pageSize, refresh)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": toPostResponses(result), "page": page})
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	result, err := h.feed.RefreshFeed(c.Request.Context(), h.viewerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": toPostResponses(result), "page": 0})
}

func (h *Handler) GetStoryBar(c *gin.Context) {
	bar := h.stories.GetStoryBar(c.Request.Context(), h.viewerID(c))
	c.JSON(http.StatusOK, gin.H{"storyBar": toStoryBarResponse(bar)})
}

func (h *Handler) GetUserStories(c *gin.Context) {
	list, err := h.stories.GetStoriesForUser(c.Request.Context(), h.viewerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": toStoryResponses(list)})
}

type publishStoryRequest struct {
	Media struct {
		URL          string `json:"url" binding:"required"`
		Kind         string `json:"kind"`
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"media" binding:"required"`
	Overlay *struct {
		Text string  `json:"text"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
	} `json:"overlay"`
	LocationName string `json:"locationName"`
	Visibility   string `json:"visibility"`
}

func (h *Handler) PublishStory(c *gin.Context) {
	var req publishStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := stories.PublishInput{
		Media: domain.MediaItem{
			URL:          req.Media.URL,
			Kind:         req.Media.Kind,
			ThumbnailURL: req.Media.ThumbnailURL,
		},
		LocationName: req.LocationName,
		Visibility:   domain.StoryVisibility(req.Visibility),
	}
	if req.Overlay != nil {
		in.Overlay = &domain.TextOverlay{Text: req.Overlay.Text, X: req.Overlay.X, Y: req.Overlay.Y}
	}

	created, err := h.stories.Publish(c.Request.Context(), h.viewerID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStoryResponse(created))
}

func (h *Handler) MarkStoryViewed(c *gin.Context) {
	viewerID := h.viewerID(c)
	if viewerID == "" {
		writeError(c, apperrors.WrapWithCode(apperrors.ErrNotAuthenticated, "NOT_AUTHENTICATED", "mark story viewed"))
		return
	}
	if err := h.stories.MarkViewed(c.Request.Context(), c.Param("id"), viewerID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleStoryLike(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.storiesRepo.GetByID(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if viewerID := h.viewerID(c); viewerID != "" {
		liked := h.checker.Existing(ctx, []string{s.ID}, existence.StoryLikes(viewerID))
		s.LikedByMe = liked[s.ID]
	}

	accepted, done := h.interactions.ToggleStoryLike(ctx, s)
	if err := <-done; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":   accepted,
		"isLiked":    s.LikedByMe,
		"likesCount": s.LikesCount,
	})
}

type createPostRequest struct {
	Kind  string `json:"kind"`
	Body  string `json:"body"`
	Media []struct {
		URL          string `json:"url"`
		Kind         string `json:"kind"`
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"media"`
	VoiceCaption *struct {
		URL         string `json:"url"`
		DurationSec int64  `json:"durationSec"`
	} `json:"voiceCaption"`
	CropTags []string `json:"cropTags"`
	Hashtags []string `json:"hashtags"`
	Location *struct {
		Name string   `json:"name"`
		Lat  *float64 `json:"lat"`
		Lng  *float64 `json:"lng"`
	} `json:"location"`
	Question *struct {
		TargetExpertise string   `json:"targetExpertise"`
		TargetExpertIDs []string `json:"targetExpertIds"`
	} `json:"question"`
}

func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := posts.CreateInput{
		Kind:     domain.PostKind(req.Kind),
		Body:     req.Body,
		CropTags: req.CropTags,
		Hashtags: req.Hashtags,
	}
	for _, m := range req.Media {
		in.Media = append(in.Media, domain.MediaItem{URL: m.URL, Kind: m.Kind, ThumbnailURL: m.ThumbnailURL})
	}
	if req.VoiceCaption != nil {
		in.VoiceCaption = &domain.VoiceCaption{URL: req.VoiceCaption.URL, DurationSec: req.VoiceCaption.DurationSec}
	}
	if req.Location != nil {
		in.Location = &domain.Location{Name: req.Location.Name, Lat: req.Location.Lat, Lng: req.Location.Lng}
	}
	if req.Question != nil {
		in.Question = &domain.QuestionMeta{
			TargetExpertise: req.Question.TargetExpertise,
			TargetExpertIDs: req.Question.TargetExpertIDs,
		}
	}

	created, err := h.posts.Create(c.Request.Context(), h.viewerID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPostResponse(created))
}

func (h *Handler) GetPost(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.annotatePost(c, p)
	c.JSON(http.StatusOK, toPostResponse(p))
}

func (h *Handler) TogglePostLike(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.annotatePost(c, p)

	accepted, done := h.interactions.ToggleLike(ctx, p)
	if err := <-done; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":   accepted,
		"isLiked":    p.LikedByMe,
		"likesCount": p.LikesCount,
	})
}

func (h *Handler) TogglePostSave(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.posts.GetByID(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.annotatePost(c, p)

	accepted, done := h.interactions.ToggleSave(ctx, p)
	if err := <-done; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":   accepted,
		"isSaved":    p.SavedByMe,
		"savesCount": p.SavesCount,
	})
}

type bestAnswerRequest struct {
	CommentID string `json:"commentId" binding:"required"`
}

func (h *Handler) MarkBestAnswer(c *gin.Context) {
	viewerID := h.viewerID(c)
	if viewerID == "" {
		writeError(c, apperrors.WrapWithCode(apperrors.ErrNotAuthenticated, "NOT_AUTHENTICATED", "mark best answer"))
		return
	}
	var req bestAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.posts.MarkBestAnswer(c.Request.Context(), viewerID, c.Param("id"), req.CommentID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListComments(c *gin.Context) {
	list, err := h.comments.ListByPost(c.Request.Context(), h.viewerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]commentResponse, 0, len(list))
	for _, item := range list {
		resp = append(resp, toCommentResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"comments": resp})
}

type createCommentRequest struct {
	Text  string `json:"text"`
	Voice *struct {
		URL         string `json:"url"`
		DurationSec int64  `json:"durationSec"`
	} `json:"voice"`
	ParentID string `json:"parentId"`
}

func (h *Handler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := comments.CreateInput{Text: req.Text, ParentID: req.ParentID}
	if req.Voice != nil {
		in.Voice = &domain.VoiceCaption{URL: req.Voice.URL, DurationSec: req.Voice.DurationSec}
	}

	created, err := h.comments.Create(c.Request.Context(), h.viewerID(c), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCommentResponse(created))
}

type deleteCommentRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) DeleteComment(c *gin.Context) {
	var req deleteCommentRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = c.Query("reason")
	}

	err := h.comments.SoftDelete(c.Request.Context(), h.viewerID(c), c.Param("id"), c.Param("commentId"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ToggleCommentLike(c *gin.Context) {
	ctx := c.Request.Context()
	comment, err := h.comments.GetByID(ctx, h.viewerID(c), c.Param("id"), c.Param("commentId"))
	if err != nil {
		writeError(c, err)
		return
	}

	accepted, done := h.interactions.ToggleCommentLike(ctx, comment)
	if err := <-done; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":   accepted,
		"isLiked":    comment.LikedByMe,
		"likesCount": comment.LikesCount,
	})
}

func (h *Handler) ToggleFollow(c *gin.Context) {
	ctx := c.Request.Context()
	target, err := h.profiles.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if viewerID := h.viewerID(c); viewerID != "" {
		following, err := h.follows.IsFollowing(ctx, viewerID, target.ID)
		if err != nil {
			writeError(c, err)
			return
		}
		target.FollowedByMe = following
	}

	accepted, done := h.interactions.ToggleFollow(ctx, target)
	if err := <-done; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted":       accepted,
		"isFollowing":    target.FollowedByMe,
		"followersCount": target.FollowersCount,
	})
}

// annotatePost fills the viewer-relative flags on a post loaded outside the
// paginator.
func (h *Handler) annotatePost(c *gin.Context, p *domain.Post) {
	viewerID := h.viewerID(c)
	if viewerID == "" {
		return
	}
	ctx := c.Request.Context()
	liked := h.checker.Existing(ctx, []string{p.ID}, existence.PostLikes(viewerID))
	saved := h.checker.Existing(ctx, []string{p.ID}, existence.PostSaves(viewerID))
	p.LikedByMe = liked[p.ID]
	p.SavedByMe = saved[p.ID]
}
