package apply

import "go.uber.org/fx"

var Module = fx.Module("apply",
	fx.Provide(
		NewEngine,
		fx.Annotate(NewNormalizeHandler, fx.ResultTags(`group:"job_handlers"`)),
		fx.Annotate(NewApplyHandler, fx.ResultTags(`group:"job_handlers"`)),
		fx.Annotate(NewSyncHandler, fx.ResultTags(`group:"job_handlers"`)),
	),
)
