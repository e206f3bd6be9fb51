package assistant

import "go.uber.org/fx"

var Module = fx.Module("assistant",
	fx.Provide(NewHandler),
	fx.Invoke(Subscribe),
)
