package customer_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"mentis/internal/api/controllers"
	"mentis/internal/repositories"
	"mentis/internal/services"
)

var Module = fx.Provide(
	provideCustomerRepo, provideCustomerService, provideCustomerController)

func provideCustomerRepo(db *gorm.DB) repositories.ICustomerRepository {
	return repositories.NewCustomerRepository(db)
}

func provideCustomerService(customerRepo repositories.ICustomerRepository) services.CustomerServiceInterface {
	return services.NewCustomerService(customerRepo)
}

func provideCustomerController(customerService services.CustomerServiceInterface) *controllers.CustomerController {
	return controllers.NewCustomerController(customerService)
}
