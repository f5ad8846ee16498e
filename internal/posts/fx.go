package posts

import (
	"go.uber.org/fx"
)

var Module = fx.Module("posts",
	fx.Provide(NewService),
)
