package billing_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"mentis/internal/api/controllers"
	"mentis/internal/gateway"
	"mentis/internal/repositories"
	"mentis/internal/services"
	mem "mentis/pkg/memcache"
)

var Module = fx.Provide(
	provideSubscriptionRepo,
	provideJobRepo,
	provideBillingService,
	provideSeenBills,
	provideBillingController,
	provideWebhookController,
)

func provideSubscriptionRepo(db *gorm.DB) repositories.ISubscriptionRepository {
	return repositories.NewSubscriptionRepository(db)
}

func provideJobRepo(db *gorm.DB) repositories.IJobRepository {
	return repositories.NewJobRepository(db)
}

func provideBillingService(
	subRepo repositories.ISubscriptionRepository,
	planRepo repositories.IPlanRepository,
	customerRepo repositories.ICustomerRepository,
	jobRepo repositories.IJobRepository,
	cycleService services.CycleServiceInterface,
	ledgerService services.LedgerServiceInterface,
	gw gateway.Client,
	mail services.IMailService,
) services.BillingServiceInterface {
	return services.NewBillingService(subRepo, planRepo, customerRepo, jobRepo, cycleService, ledgerService, gw, mail)
}

func provideBillingController(
	billingService services.BillingServiceInterface,
	ledgerService services.LedgerServiceInterface,
) *controllers.BillingController {
	return controllers.NewBillingController(billingService, ledgerService)
}

func provideSeenBills() mem.SeenBillStore {
	return mem.NewSeenBills()
}

func provideWebhookController(billingService services.BillingServiceInterface, seenBills mem.SeenBillStore) *controllers.WebhookController {
	return controllers.NewWebhookController(billingService, seenBills)
}
