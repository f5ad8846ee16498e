package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/pkg/logger"
)

// ClientOpts holds dependencies for creating the mongo database handle.
type ClientOpts struct {
	fx.In
	LC     fx.Lifecycle
	Logger logger.Logger
	Config *config.Config
}

// NewDatabase connects to MongoDB and manages the client lifecycle.
func NewDatabase(opts ClientOpts) (*mongo.Database, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(opts.Config.Mongo.URI))
	if err != nil {
		return nil, err
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx, nil); err != nil {
				return err
			}
			opts.Logger.Info("Connected to mongodb")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	return client.Database(opts.Config.Mongo.Name), nil
}
