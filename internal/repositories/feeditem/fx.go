package feeditem

import (
	"go.uber.org/fx"
)

var Module = fx.Module("feeditem_repository",
	fx.Provide(
		NewStoreRepository,
		fx.Annotate(
			func(repo *StoreRepository) Repository {
				return repo
			},
			fx.As(new(Repository)),
		),
	),
)
