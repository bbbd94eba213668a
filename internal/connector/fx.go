package connector

import "go.uber.org/fx"

var Module = fx.Module("connector",
	fx.Provide(
		fx.Annotate(
			NewManual,
			fx.ResultTags(`group:"connectors"`),
		),
		fx.Annotate(
			NewRegistry,
			fx.ParamTags(`group:"connectors"`),
		),
	),
)
