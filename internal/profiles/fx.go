package profiles

import (
	"go.uber.org/fx"
)

var Module = fx.Module("profiles",
	fx.Provide(
		NewStoreProvider,
		fx.Annotate(
			func(p *StoreProvider) Provider {
				return p
			},
			fx.As(new(Provider)),
		),
	),
)
