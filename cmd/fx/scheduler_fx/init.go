package scheduler_fx

import (
	"context"

	"go.uber.org/fx"

	"mentis/internal/repositories"
	"mentis/internal/services"
)

var Module = fx.Options(
	fx.Provide(provideSchedulerService),
	fx.Invoke(startScheduler),
)

func provideSchedulerService(
	jobRepo repositories.IJobRepository,
	billing services.BillingServiceInterface,
) services.SchedulerServiceInterface {
	return services.NewSchedulerService(jobRepo, billing)
}

func startScheduler(lc fx.Lifecycle, scheduler services.SchedulerServiceInterface) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
