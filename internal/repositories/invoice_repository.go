package repositories

import (
	"context"
	"errors"
	"gorm.io/gorm"

	"mentis/internal/models/db_models"
)

type IInvoiceRepository interface {
	CreateInvoice(ctx context.Context, invoice *db_models.Invoice) error
	GetInvoiceById(ctx context.Context, invoiceID string) (*db_models.Invoice, error)
	GetInvoiceByCode(ctx context.Context, gatewayBillCode string) (*db_models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *db_models.Invoice) error
	ListInvoicesByCustomer(ctx context.Context, customerID string) ([]db_models.Invoice, error)
}

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) IInvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (i InvoiceRepository) CreateInvoice(ctx context.Context, invoice *db_models.Invoice) error {
	return i.db.WithContext(ctx).Create(invoice).Error
}

func (i InvoiceRepository) GetInvoiceById(ctx context.Context, invoiceID string) (*db_models.Invoice, error) {

	var invoice db_models.Invoice
	err := i.db.WithContext(ctx).First(&invoice, "id = ?", invoiceID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &invoice, nil
}

func (i InvoiceRepository) GetInvoiceByCode(ctx context.Context, gatewayBillCode string) (*db_models.Invoice, error) {

	var invoice db_models.Invoice
	err := i.db.WithContext(ctx).First(&invoice, "gateway_bill_code = ?", gatewayBillCode).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &invoice, nil
}

func (i InvoiceRepository) UpdateInvoice(ctx context.Context, invoice *db_models.Invoice) error {
	return i.db.WithContext(ctx).Save(invoice).Error
}

func (i InvoiceRepository) ListInvoicesByCustomer(ctx context.Context, customerID string) ([]db_models.Invoice, error) {

	var invoices []db_models.Invoice
	err := i.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&invoices).Error

	if err != nil {
		return nil, err
	}

	return invoices, nil
}
