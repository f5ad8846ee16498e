package story

import (
	"go.uber.org/fx"
)

var Module = fx.Module("story_repository",
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
