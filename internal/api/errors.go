package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commentRepo "github.com/cropside/feed-engine/internal/repositories/comment"
	postRepo "github.com/cropside/feed-engine/internal/repositories/post"
	storyRepo "github.com/cropside/feed-engine/internal/repositories/story"
	"github.com/cropside/feed-engine/internal/profiles"
	"github.com/cropside/feed-engine/internal/store"
	apperrors "github.com/cropside/feed-engine/pkg/errors"
)

func statusFor(err error) int {
	switch {
	case apperrors.GetCode(err) == "RATE_LIMITED":
		return http.StatusTooManyRequests
	case apperrors.IsNotAuthenticated(err):
		return http.StatusUnauthorized
	case apperrors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err),
		apperrors.Is(err, store.ErrNotFound),
		apperrors.Is(err, postRepo.ErrNotFound),
		apperrors.Is(err, storyRepo.ErrNotFound),
		apperrors.Is(err, commentRepo.ErrNotFound),
		apperrors.Is(err, profiles.ErrNotFound):
		return http.StatusNotFound
	case apperrors.IsConflict(err):
		return http.StatusConflict
	case apperrors.IsTimeout(err):
		return http.StatusGatewayTimeout
	case apperrors.IsStoreUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	if code := apperrors.GetCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}
