package plan_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"mentis/internal/api/controllers"
	"mentis/internal/repositories"
)

var Module = fx.Provide(
	providePlanRepo, providePlanController)

func providePlanRepo(db *gorm.DB) repositories.IPlanRepository {
	return repositories.NewPlanRepository(db)
}

func providePlanController(planRepo repositories.IPlanRepository) *controllers.PlanController {
	return controllers.NewPlanController(planRepo)
}
