package repositories

import (
	"context"
	"errors"
	"gorm.io/gorm"

	"github.com/shopspring/decimal"

	"mentis/internal/infra"
	"mentis/internal/models/db_models"
)

type ILedgerRepository interface {
	CreateEntry(ctx context.Context, entry *db_models.LedgerEntry) error
	CreateEntryWithInvoice(ctx context.Context, entry *db_models.LedgerEntry, invoice *db_models.Invoice) error
	GetEntryById(ctx context.Context, entryID string) (*db_models.LedgerEntry, error)
	GetEntryByCycleId(ctx context.Context, cycleID string) (*db_models.LedgerEntry, error)
	GetEntryByBillCode(ctx context.Context, gatewayBillCode string) (*db_models.LedgerEntry, error)
	FindRecentUnlinked(ctx context.Context, customerID, subscriptionID string, kind db_models.ChargeKind, sinceUnix int64) (*db_models.LedgerEntry, error)
	FindRecentByValue(ctx context.Context, customerID, subscriptionID string, kind db_models.ChargeKind, value decimal.Decimal, sinceUnix int64, excludeBillCode string) (*db_models.LedgerEntry, error)
	UpdateEntry(ctx context.Context, entry *db_models.LedgerEntry) error
	CancelPendingBySubscription(ctx context.Context, subID string, excludeEntryID string) error
	ListEntriesByCustomer(ctx context.Context, customerID string) ([]db_models.LedgerEntry, error)
}

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) ILedgerRepository {
	return &LedgerRepository{db: db}
}

func (l LedgerRepository) CreateEntry(ctx context.Context, entry *db_models.LedgerEntry) error {
	return l.db.WithContext(ctx).Create(entry).Error
}

// CreateEntryWithInvoice writes the ledger entry and its mirrored invoice
// in one transaction, so a crash between the two cannot leave a charge
// without its reporting row.
func (l LedgerRepository) CreateEntryWithInvoice(ctx context.Context, entry *db_models.LedgerEntry, invoice *db_models.Invoice) (err error) {

	tx := infra.StartTransaction(l.db.WithContext(ctx))
	if tx.Error != nil {
		return tx.Error
	}
	defer func() { infra.ReleaseTransaction(tx, err) }()

	if err = tx.Create(entry).Error; err != nil {
		return err
	}
	if invoice != nil {
		if err = tx.Create(invoice).Error; err != nil {
			return err
		}
	}
	return nil
}

func (l LedgerRepository) GetEntryById(ctx context.Context, entryID string) (*db_models.LedgerEntry, error) {

	var entry db_models.LedgerEntry
	err := l.db.WithContext(ctx).First(&entry, "id = ?", entryID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

func (l LedgerRepository) GetEntryByCycleId(ctx context.Context, cycleID string) (*db_models.LedgerEntry, error) {

	var entry db_models.LedgerEntry
	err := l.db.WithContext(ctx).First(&entry, "cycle_id = ?", cycleID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

func (l LedgerRepository) GetEntryByBillCode(ctx context.Context, gatewayBillCode string) (*db_models.LedgerEntry, error) {

	var entry db_models.LedgerEntry
	err := l.db.WithContext(ctx).First(&entry, "gateway_bill_code = ?", gatewayBillCode).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// FindRecentUnlinked looks for a pending charge of the same customer,
// subscription and kind created after sinceUnix that has no cycle
// attached yet.
func (l LedgerRepository) FindRecentUnlinked(ctx context.Context, customerID, subscriptionID string, kind db_models.ChargeKind, sinceUnix int64) (*db_models.LedgerEntry, error) {

	query := l.db.WithContext(ctx).
		Where("customer_id = ? AND kind = ? AND cycle_id IS NULL AND status = ? AND created_at >= ?",
			customerID, kind, db_models.LedgerStatusAwaitingPayment, sinceUnix)
	if subscriptionID != "" {
		query = query.Where("subscription_id = ?", subscriptionID)
	} else {
		query = query.Where("subscription_id IS NULL")
	}

	var entry db_models.LedgerEntry
	err := query.Order("created_at DESC").First(&entry).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// FindRecentByValue looks for a pending charge of the same customer,
// subscription, kind and value created after sinceUnix under a different
// gateway bill code.
func (l LedgerRepository) FindRecentByValue(ctx context.Context, customerID, subscriptionID string, kind db_models.ChargeKind, value decimal.Decimal, sinceUnix int64, excludeBillCode string) (*db_models.LedgerEntry, error) {

	query := l.db.WithContext(ctx).
		Where("customer_id = ? AND kind = ? AND value = ? AND status = ? AND created_at >= ? AND (gateway_bill_code IS NULL OR gateway_bill_code <> ?)",
			customerID, kind, value, db_models.LedgerStatusAwaitingPayment, sinceUnix, excludeBillCode)
	if subscriptionID != "" {
		query = query.Where("subscription_id = ?", subscriptionID)
	} else {
		query = query.Where("subscription_id IS NULL")
	}

	var entry db_models.LedgerEntry
	err := query.Order("created_at DESC").First(&entry).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

func (l LedgerRepository) UpdateEntry(ctx context.Context, entry *db_models.LedgerEntry) error {
	return l.db.WithContext(ctx).Save(entry).Error
}

// CancelPendingBySubscription voids the subscription's unpaid charges.
// Penalty entries are kept alive; the entry identified by excludeEntryID
// (typically a refund just posted) is also left untouched.
func (l LedgerRepository) CancelPendingBySubscription(ctx context.Context, subID string, excludeEntryID string) error {

	query := l.db.WithContext(ctx).
		Model(&db_models.LedgerEntry{}).
		Where("subscription_id = ? AND status = ? AND kind <> ?",
			subID, db_models.LedgerStatusAwaitingPayment, db_models.ChargeKindPenalty)

	if excludeEntryID != "" {
		query = query.Where("id <> ?", excludeEntryID)
	}

	return query.Update("status", db_models.LedgerStatusCancelled).Error
}

func (l LedgerRepository) ListEntriesByCustomer(ctx context.Context, customerID string) ([]db_models.LedgerEntry, error) {

	var entries []db_models.LedgerEntry
	err := l.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&entries).Error

	if err != nil {
		return nil, err
	}

	return entries, nil
}
