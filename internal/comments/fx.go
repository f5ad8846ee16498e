package comments

import (
	"go.uber.org/fx"
)

var Module = fx.Module("comments",
	fx.Provide(NewService),
)
