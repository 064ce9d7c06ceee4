package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mentis/internal/models/db_models"
	"mentis/internal/models/response_models"
	"mentis/internal/repositories"
	"mentis/pkg/utils"
)

const (
	// unlinkedMatchWindow is how far back a pending charge without a cycle
	// can be claimed by a later posting for the same customer.
	unlinkedMatchWindow = 24 * time.Hour
	// sameValueWindow guards against the gateway issuing two bill codes
	// for one charge in quick succession.
	sameValueWindow = 10 * time.Minute
)

type ChargeInput struct {
	CustomerID     uuid.UUID
	SubscriptionID *uuid.UUID
	CycleID        *uuid.UUID
	Kind           db_models.ChargeKind
	Value          decimal.Decimal
	Description    string
	// Bill code from the gateway; empty for internal postings.
	GatewayBillCode string
	// Unix seconds; payment deadline of the charge when known.
	DueAt *int64
}

type LedgerServiceInterface interface {
	PostCharge(ctx context.Context, input ChargeInput) (*db_models.LedgerEntry, error)
	PostRefund(ctx context.Context, input ChargeInput) (*db_models.LedgerEntry, error)
	RecordCancelled(ctx context.Context, input ChargeInput) (*db_models.LedgerEntry, error)
	ApproveByBillCode(ctx context.Context, gatewayBillCode string) (*db_models.LedgerEntry, error)
	CancelForSubscription(ctx context.Context, subID string, excludeEntryID string) error
	ListLedger(ctx context.Context, customerID string) ([]response_models.LedgerEntryResponse, error)
}

func NewLedgerService(
	ledgerRepo repositories.ILedgerRepository,
	invoiceRepo repositories.IInvoiceRepository,
) LedgerServiceInterface {
	return &LedgerService{
		ledgerRepo:  ledgerRepo,
		invoiceRepo: invoiceRepo,
	}
}

type LedgerService struct {
	ledgerRepo  repositories.ILedgerRepository
	invoiceRepo repositories.IInvoiceRepository
}

// PostCharge records a pending charge exactly once. Retries, concurrent
// webhook deliveries and gateway hiccups all funnel into the same entry:
//
//  1. a posting whose bill code is already recorded returns that entry;
//  2. a posting linked to a cycle relies on the unique cycle index, so a
//     lost race just fetches the winner's row;
//  3. a posting without a cycle claims the customer's most recent pending
//     unlinked entry instead of duplicating it;
//  4. a posting whose value matches a pending charge created moments ago
//     under a different bill code is treated as the same charge.
func (l *LedgerService) PostCharge(ctx context.Context, input ChargeInput) (*db_models.LedgerEntry, error) {

	if input.GatewayBillCode != "" {
		existing, err := l.ledgerRepo.GetEntryByBillCode(ctx, input.GatewayBillCode)
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if existing != nil {
			return existing, nil
		}
	}

	if input.CycleID != nil {
		existing, err := l.ledgerRepo.GetEntryByCycleId(ctx, input.CycleID.String())
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if existing != nil {
			return l.adoptBillCode(ctx, existing, input)
		}
	}

	subID := ""
	if input.SubscriptionID != nil {
		subID = input.SubscriptionID.String()
	}

	if input.CycleID == nil {
		since := time.Now().Add(-unlinkedMatchWindow).Unix()
		existing, err := l.ledgerRepo.FindRecentUnlinked(ctx, input.CustomerID.String(), subID, input.Kind, since)
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if existing != nil && existing.Value.Equal(input.Value) {
			return l.adoptBillCode(ctx, existing, input)
		}
	}

	if input.GatewayBillCode != "" {
		since := time.Now().Add(-sameValueWindow).Unix()
		existing, err := l.ledgerRepo.FindRecentByValue(ctx, input.CustomerID.String(), subID, input.Kind, input.Value, since, input.GatewayBillCode)
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if existing != nil {
			log.Printf("ledger: bill %s matches pending charge %s by value, treating as duplicate",
				input.GatewayBillCode, existing.ID)
			return l.adoptBillCode(ctx, existing, input)
		}
	}

	entry := &db_models.LedgerEntry{
		CustomerID:     input.CustomerID,
		SubscriptionID: input.SubscriptionID,
		CycleID:        input.CycleID,
		Kind:           input.Kind,
		Value:          input.Value,
		Status:         db_models.LedgerStatusAwaitingPayment,
		Description:    input.Description,
		DueAt:          input.DueAt,
	}
	if input.GatewayBillCode != "" {
		code := input.GatewayBillCode
		entry.GatewayBillCode = &code
	}

	if err := l.ledgerRepo.CreateEntryWithInvoice(ctx, entry, buildInvoice(input)); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return l.fetchInsertWinner(ctx, input)
		}
		return nil, utils.ErrDatabaseError
	}

	return entry, nil
}

// fetchInsertWinner resolves a lost insert race: the unique indexes on
// cycle and bill code rejected the row, so the winner's entry is fetched
// and returned instead.
func (l *LedgerService) fetchInsertWinner(ctx context.Context, input ChargeInput) (*db_models.LedgerEntry, error) {

	if input.CycleID != nil {
		winner, err := l.ledgerRepo.GetEntryByCycleId(ctx, input.CycleID.String())
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if winner != nil {
			return winner, nil
		}
	}

	if input.GatewayBillCode != "" {
		winner, err := l.ledgerRepo.GetEntryByBillCode(ctx, input.GatewayBillCode)
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if winner != nil {
			return winner, nil
		}
	}

	return nil, utils.ErrDatabaseError
}

// PostRefund records a negative movement. Refunds are informational and
// never deduplicated against charges.
func (l *LedgerService) PostRefund(ctx context.Context, input ChargeInput) (*db_models.LedgerEntry, error) {

	value := input.Value
	if value.IsPositive() {
		value = value.Neg()
	}

	entry := &db_models.LedgerEntry{
		CustomerID:     input.CustomerID,
		SubscriptionID: input.SubscriptionID,
		Kind:           input.Kind,
		Value:          value,
		Status:         db_models.LedgerStatusApproved,
		Description:    input.Description,
	}

	if err := l.ledgerRepo.CreateEntry(ctx, entry); err != nil {
		return nil, utils.ErrDatabaseError
	}

	return entry, nil
}

// RecordCancelled books a movement that was computed but will never be
// charged, such as the unused portion of a plan written off at
// cancellation. The entry lands already cancelled.
func (l *LedgerService) RecordCancelled(ctx context.Context, input ChargeInput) (*db_models.LedgerEntry, error) {

	entry := &db_models.LedgerEntry{
		CustomerID:     input.CustomerID,
		SubscriptionID: input.SubscriptionID,
		Kind:           input.Kind,
		Value:          input.Value,
		Status:         db_models.LedgerStatusCancelled,
		Description:    input.Description,
	}

	if err := l.ledgerRepo.CreateEntry(ctx, entry); err != nil {
		return nil, utils.ErrDatabaseError
	}

	return entry, nil
}

// ApproveByBillCode marks the charge behind a paid gateway bill as
// approved and settles its mirrored invoice.
func (l *LedgerService) ApproveByBillCode(ctx context.Context, gatewayBillCode string) (*db_models.LedgerEntry, error) {

	entry, err := l.ledgerRepo.GetEntryByBillCode(ctx, gatewayBillCode)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if entry == nil {
		return nil, nil
	}

	if entry.Status != db_models.LedgerStatusApproved {
		entry.Status = db_models.LedgerStatusApproved
		if err := l.ledgerRepo.UpdateEntry(ctx, entry); err != nil {
			return nil, utils.ErrDatabaseError
		}
	}

	invoice, err := l.invoiceRepo.GetInvoiceByCode(ctx, gatewayBillCode)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if invoice != nil && invoice.Status != db_models.InvoiceStatusPaid {
		now := utils.NowUnixSeconds()
		invoice.Status = db_models.InvoiceStatusPaid
		invoice.PaidAt = &now
		if err := l.invoiceRepo.UpdateInvoice(ctx, invoice); err != nil {
			return nil, utils.ErrDatabaseError
		}
	}

	return entry, nil
}

func (l *LedgerService) CancelForSubscription(ctx context.Context, subID string, excludeEntryID string) error {
	if err := l.ledgerRepo.CancelPendingBySubscription(ctx, subID, excludeEntryID); err != nil {
		return utils.ErrDatabaseError
	}
	return nil
}

func (l *LedgerService) ListLedger(ctx context.Context, customerID string) ([]response_models.LedgerEntryResponse, error) {

	entries, err := l.ledgerRepo.ListEntriesByCustomer(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}

	result := make([]response_models.LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, response_models.LedgerEntryResponse{
			ID:          entry.ID,
			Kind:        string(entry.Kind),
			Value:       entry.Value,
			Status:      string(entry.Status),
			Description: entry.Description,
			CreatedAt:   utils.FormatRFC3339BR(utils.FromUnixSecondsBR(entry.CreatedAt)),
		})
	}

	return result, nil
}

// adoptBillCode attaches the bill code and due date to an existing entry
// when the posting that lost the dedup race carried details the entry
// lacks.
func (l *LedgerService) adoptBillCode(ctx context.Context, entry *db_models.LedgerEntry, input ChargeInput) (*db_models.LedgerEntry, error) {

	changed := false
	if input.GatewayBillCode != "" && entry.GatewayBillCode == nil {
		code := input.GatewayBillCode
		entry.GatewayBillCode = &code
		changed = true
	}
	if input.DueAt != nil && entry.DueAt == nil {
		entry.DueAt = input.DueAt
		changed = true
	}
	if !changed {
		return entry, nil
	}

	if err := l.ledgerRepo.UpdateEntry(ctx, entry); err != nil {
		return nil, utils.ErrDatabaseError
	}
	return entry, nil
}

// buildInvoice mirrors a gateway-backed charge as an invoice row. Internal
// postings without a bill code have nothing to mirror.
func buildInvoice(input ChargeInput) *db_models.Invoice {

	if input.GatewayBillCode == "" {
		return nil
	}

	code := input.GatewayBillCode
	return &db_models.Invoice{
		CustomerID:      input.CustomerID,
		SubscriptionID:  input.SubscriptionID,
		Kind:            input.Kind,
		Value:           input.Value,
		Status:          db_models.InvoiceStatusPending,
		GatewayBillCode: &code,
		DueAt:           input.DueAt,
	}
}
