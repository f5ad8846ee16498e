package pgstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/pkg/logger"
)

// PoolOpts holds dependencies for creating a pgx pool.
type PoolOpts struct {
	fx.In
	LC     fx.Lifecycle
	Logger logger.Logger
	Config *config.Config
}

// NewPool creates a new pgxpool.Pool and manages its lifecycle.
func NewPool(opts PoolOpts) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), opts.Config.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	opts.LC.Append(
		fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := pool.Ping(ctx); err != nil {
					return fmt.Errorf("failed to ping postgres: %w", err)
				}
				opts.Logger.Info("Connected to postgres")
				return nil
			},
			OnStop: func(ctx context.Context) error {
				pool.Close()
				return nil
			},
		},
	)

	return pool, nil
}
