package cycle_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"mentis/internal/repositories"
	"mentis/internal/services"
)

var Module = fx.Provide(
	provideCycleRepo, provideCycleService)

func provideCycleRepo(db *gorm.DB) repositories.ICycleRepository {
	return repositories.NewCycleRepository(db)
}

func provideCycleService(cycleRepo repositories.ICycleRepository) services.CycleServiceInterface {
	return services.NewCycleService(cycleRepo)
}
