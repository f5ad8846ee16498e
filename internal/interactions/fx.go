package interactions

import (
	"time"

	"go.uber.org/fx"

	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/internal/ratelimit"
)

var Module = fx.Module("interactions",
	fx.Provide(
		func(cfg *config.Config) ratelimit.Limiter {
			return ratelimit.NewInMemoryLimiter(cfg.Interactions.RatePerMinute, time.Minute, cfg.Interactions.Burst)
		},
		NewController,
	),
)
