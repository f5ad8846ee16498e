package api

import (
	"context"

	"go.uber.org/fx"

	"github.com/cropside/feed-engine/internal/auth"
	"github.com/cropside/feed-engine/internal/config"
)

var Module = fx.Module("api",
	fx.Provide(
		func(cfg *config.Config) *auth.TokenParser {
			return auth.NewTokenParser(cfg.Auth.JWTSecret)
		},
		NewHandler,
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, srv *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				srv.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Stop(ctx)
			},
		})
	}),
)
