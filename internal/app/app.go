package app

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cropside/feed-engine/internal/api"
	"github.com/cropside/feed-engine/internal/auth"
	"github.com/cropside/feed-engine/internal/comments"
	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/internal/existence"
	"github.com/cropside/feed-engine/internal/feed"
	"github.com/cropside/feed-engine/internal/interactions"
	"github.com/cropside/feed-engine/internal/metrics"
	_ "github.com/cropside/feed-engine/internal/migrations"
	"github.com/cropside/feed-engine/internal/posts"
	"github.com/cropside/feed-engine/internal/profiles"
	repositories "github.com/cropside/feed-engine/internal/repositories/fx"
	"github.com/cropside/feed-engine/internal/stories"
	storefx "github.com/cropside/feed-engine/internal/store/fx"
	"github.com/cropside/feed-engine/pkg/logger"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		func() clockwork.Clock { return clockwork.NewRealClock() },
		fx.Annotate(
			auth.NewContextProvider,
			fx.As(new(auth.Provider)),
		),
		existence.New,
	),
	metrics.Module,
	storefx.Module,
	repositories.Module,
	profiles.Module,
	posts.Module,
	comments.Module,
	stories.Module,
	feed.Module,
	interactions.Module,
	api.Module,
	fx.Invoke(migrateUp),
)

// migrateUp applies the document-table migrations on startup. Only the
// Postgres backend has schema to manage.
func migrateUp(cfg *config.Config) error {
	if cfg.Store.Driver != "postgres" {
		return nil
	}

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	return goose.Up(db, filepath.Join(wd, "internal", "migrations"))
}
