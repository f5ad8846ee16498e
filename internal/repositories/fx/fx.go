package fx

import (
	"github.com/cropside/feed-engine/internal/repositories/comment"
	"github.com/cropside/feed-engine/internal/repositories/feeditem"
	"github.com/cropside/feed-engine/internal/repositories/follow"
	"github.com/cropside/feed-engine/internal/repositories/post"
	"github.com/cropside/feed-engine/internal/repositories/story"
	"go.uber.org/fx"
)

var Module = fx.Options(
	post.Module,
	story.Module,
	follow.Module,
	feeditem.Module,
	comment.Module,
)
