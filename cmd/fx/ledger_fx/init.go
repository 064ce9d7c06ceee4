package ledger_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"mentis/internal/repositories"
	"mentis/internal/services"
)

var Module = fx.Provide(
	provideLedgerRepo, provideInvoiceRepo, provideLedgerService)

func provideLedgerRepo(db *gorm.DB) repositories.ILedgerRepository {
	return repositories.NewLedgerRepository(db)
}

func provideInvoiceRepo(db *gorm.DB) repositories.IInvoiceRepository {
	return repositories.NewInvoiceRepository(db)
}

func provideLedgerService(
	ledgerRepo repositories.ILedgerRepository,
	invoiceRepo repositories.IInvoiceRepository,
) services.LedgerServiceInterface {
	return services.NewLedgerService(ledgerRepo, invoiceRepo)
}
