package fx

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/internal/store"
	"github.com/cropside/feed-engine/internal/store/memstore"
	"github.com/cropside/feed-engine/internal/store/mongostore"
	"github.com/cropside/feed-engine/internal/store/pgstore"
	"github.com/cropside/feed-engine/pkg/logger"
)

var Module = fx.Module("store",
	fx.Provide(NewClient),
)

type Opts struct {
	fx.In
	LC     fx.Lifecycle
	Logger logger.Logger
	Config *config.Config
	Clock  clockwork.Clock
}

// NewClient selects the configured backend and wraps it with the store
// boundary timeout.
func NewClient(opts Opts) (store.Client, error) {
	var client store.Client
	switch opts.Config.Store.Driver {
	case "memory":
		client = memstore.New(opts.Clock)
	case "postgres":
		pool, err := pgstore.NewPool(pgstore.PoolOpts{LC: opts.LC, Logger: opts.Logger, Config: opts.Config})
		if err != nil {
			return nil, err
		}
		client = pgstore.New(pool, opts.Logger)
	case "mongo":
		db, err := mongostore.NewDatabase(mongostore.ClientOpts{LC: opts.LC, Logger: opts.Logger, Config: opts.Config})
		if err != nil {
			return nil, err
		}
		client = mongostore.New(db, opts.Logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Config.Store.Driver)
	}

	opts.Logger.Info("Document store configured", "driver", opts.Config.Store.Driver)
	return store.WithTimeout(client, opts.Config.Store.Timeout), nil
}
