package feed

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("feed",
	fx.Provide(NewService),
	fx.Invoke(func(lc fx.Lifecycle, svc *Service) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return svc.Start()
			},
			OnStop: func(ctx context.Context) error {
				return svc.Stop()
			},
		})
	}),
)
