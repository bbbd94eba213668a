package jobqueue

import (
	"context"

	"github.com/smallbiznis/ledgerlink/internal/jobqueue/service"
	"github.com/smallbiznis/ledgerlink/internal/jobqueue/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("jobqueue",
	fx.Provide(
		service.NewService,
		worker.NewWorker,
	),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, w *worker.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go func() { _ = w.Run(ctx) }()

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
