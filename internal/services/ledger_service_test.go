package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentis/internal/models/db_models"
)

func newLedgerFixture() (LedgerServiceInterface, *fakeLedgerRepo, *fakeInvoiceRepo) {
	invoiceRepo := newFakeInvoiceRepo()
	ledgerRepo := newFakeLedgerRepo(invoiceRepo)
	return NewLedgerService(ledgerRepo, invoiceRepo), ledgerRepo, invoiceRepo
}

func planCharge(customerID uuid.UUID, value string, billCode string) ChargeInput {
	return ChargeInput{
		CustomerID:      customerID,
		Kind:            db_models.ChargeKindPlan,
		Value:           decimal.RequireFromString(value),
		Description:     "plan charge",
		GatewayBillCode: billCode,
	}
}

func TestPostChargeCreatesPendingEntryAndInvoice(t *testing.T) {
	svc, ledgerRepo, invoiceRepo := newLedgerFixture()
	customerID := uuid.New()

	due := time.Now().AddDate(0, 1, 0).Unix()
	input := planCharge(customerID, "299.90", "B-1")
	input.DueAt = &due

	entry, err := svc.PostCharge(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, db_models.LedgerStatusAwaitingPayment, entry.Status)
	require.NotNil(t, entry.GatewayBillCode)
	assert.Equal(t, "B-1", *entry.GatewayBillCode)
	require.NotNil(t, entry.DueAt)
	assert.Equal(t, due, *entry.DueAt)

	assert.Len(t, ledgerRepo.entries, 1)
	require.Len(t, invoiceRepo.invoices, 1)
	require.NotNil(t, invoiceRepo.invoices[0].DueAt)
	assert.Equal(t, due, *invoiceRepo.invoices[0].DueAt)
}

func TestPostChargeSameBillCodeIsIdempotent(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()

	first, err := svc.PostCharge(context.Background(), planCharge(customerID, "299.90", "B-1"))
	require.NoError(t, err)

	second, err := svc.PostCharge(context.Background(), planCharge(customerID, "299.90", "B-1"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, ledgerRepo.entries, 1)
}

func TestPostChargeCycleCollisionReturnsWinner(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()
	cycleID := uuid.New()

	input := planCharge(customerID, "299.90", "B-1")
	input.CycleID = &cycleID
	first, err := svc.PostCharge(context.Background(), input)
	require.NoError(t, err)

	// A second posting for the same cycle under a fresh bill code must not
	// double-charge.
	dup := planCharge(customerID, "299.90", "")
	dup.CycleID = &cycleID
	second, err := svc.PostCharge(context.Background(), dup)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, ledgerRepo.entries, 1)
}

func TestPostChargeClaimsRecentUnlinkedEntry(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()

	orphan, err := svc.PostCharge(context.Background(), planCharge(customerID, "299.90", ""))
	require.NoError(t, err)
	require.Nil(t, orphan.GatewayBillCode)

	// The webhook later reports the same value with a bill code: it adopts
	// the orphan instead of creating a sibling.
	linked, err := svc.PostCharge(context.Background(), planCharge(customerID, "299.90", "B-9"))
	require.NoError(t, err)

	assert.Equal(t, orphan.ID, linked.ID)
	require.NotNil(t, linked.GatewayBillCode)
	assert.Equal(t, "B-9", *linked.GatewayBillCode)
	assert.Len(t, ledgerRepo.entries, 1)
}

func TestPostChargeSameValueDifferentCodeGuard(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()
	cycleID := uuid.New()

	input := planCharge(customerID, "299.90", "B-1")
	input.CycleID = &cycleID
	_, err := svc.PostCharge(context.Background(), input)
	require.NoError(t, err)

	// Gateway hiccup: same value arrives moments later under another code
	// and without cycle linkage.
	_, err = svc.PostCharge(context.Background(), planCharge(customerID, "299.90", "B-2"))
	require.NoError(t, err)

	assert.Len(t, ledgerRepo.entries, 1)
}

func TestPostChargeBillCodeInsertRaceReturnsWinner(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()

	c1 := uuid.New()
	first := planCharge(customerID, "299.90", "B-1")
	first.CycleID = &c1
	winner, err := svc.PostCharge(context.Background(), first)
	require.NoError(t, err)

	// A concurrent posting of the same bill slips past the lookup; the
	// unique index on the bill code rejects its insert and the winner's
	// row comes back instead.
	ledgerRepo.billCodeLookupMisses = 1
	c2 := uuid.New()
	loser := planCharge(customerID, "299.90", "B-1")
	loser.CycleID = &c2
	entry, err := svc.PostCharge(context.Background(), loser)
	require.NoError(t, err)

	assert.Equal(t, winner.ID, entry.ID)
	assert.Len(t, ledgerRepo.entries, 1)
}

func TestPostChargeDoesNotClaimOtherKindOfSameValue(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()
	subID := uuid.New()

	penalty := ChargeInput{
		CustomerID:      customerID,
		SubscriptionID:  &subID,
		Kind:            db_models.ChargeKindPenalty,
		Value:           decimal.RequireFromString("299.90"),
		GatewayBillCode: "PEN-1",
	}
	_, err := svc.PostCharge(context.Background(), penalty)
	require.NoError(t, err)

	// A plan charge of the very same value moments later is a distinct
	// movement, never a duplicate of the penalty.
	charge := planCharge(customerID, "299.90", "B-1")
	charge.SubscriptionID = &subID
	entry, err := svc.PostCharge(context.Background(), charge)
	require.NoError(t, err)

	assert.Equal(t, db_models.ChargeKindPlan, entry.Kind)
	assert.Len(t, ledgerRepo.entries, 2)
}

func TestPostChargeDistinctValuesBothRecorded(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()

	c1 := uuid.New()
	first := planCharge(customerID, "299.90", "B-1")
	first.CycleID = &c1
	_, err := svc.PostCharge(context.Background(), first)
	require.NoError(t, err)

	c2 := uuid.New()
	second := planCharge(customerID, "599.90", "B-2")
	second.CycleID = &c2
	_, err = svc.PostCharge(context.Background(), second)
	require.NoError(t, err)

	assert.Len(t, ledgerRepo.entries, 2)
}

func TestPostRefundStoresNegativeValue(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()

	refund, err := svc.PostRefund(context.Background(), ChargeInput{
		CustomerID:  customerID,
		Kind:        db_models.ChargeKindPlan,
		Value:       decimal.RequireFromString("224.93"),
		Description: "withdrawal refund",
	})

	require.NoError(t, err)
	assert.True(t, refund.Value.IsNegative())
	assert.Equal(t, db_models.LedgerStatusApproved, refund.Status)
	assert.Len(t, ledgerRepo.entries, 1)
}

func TestRecordCancelledLandsAlreadyCancelled(t *testing.T) {
	svc, ledgerRepo, invoiceRepo := newLedgerFixture()
	customerID := uuid.New()

	entry, err := svc.RecordCancelled(context.Background(), ChargeInput{
		CustomerID:  customerID,
		Kind:        db_models.ChargeKindPlan,
		Value:       decimal.RequireFromString("99.97"),
		Description: "unused cycle value written off at cancellation",
	})

	require.NoError(t, err)
	assert.Equal(t, db_models.LedgerStatusCancelled, entry.Status)
	assert.Len(t, ledgerRepo.entries, 1)
	// A write-off never billed has no invoice to mirror.
	assert.Empty(t, invoiceRepo.invoices)
}

func TestApproveByBillCodeSettlesEntryAndInvoice(t *testing.T) {
	svc, _, invoiceRepo := newLedgerFixture()
	customerID := uuid.New()

	_, err := svc.PostCharge(context.Background(), planCharge(customerID, "299.90", "B-1"))
	require.NoError(t, err)

	entry, err := svc.ApproveByBillCode(context.Background(), "B-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, db_models.LedgerStatusApproved, entry.Status)

	invoice, err := invoiceRepo.GetInvoiceByCode(context.Background(), "B-1")
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, db_models.InvoiceStatusPaid, invoice.Status)
	assert.NotNil(t, invoice.PaidAt)
}

func TestApproveByBillCodeUnknownBill(t *testing.T) {
	svc, _, _ := newLedgerFixture()

	entry, err := svc.ApproveByBillCode(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCancelForSubscriptionKeepsPenalties(t *testing.T) {
	svc, ledgerRepo, _ := newLedgerFixture()
	customerID := uuid.New()
	subID := uuid.New()

	charge := planCharge(customerID, "299.90", "B-1")
	charge.SubscriptionID = &subID
	_, err := svc.PostCharge(context.Background(), charge)
	require.NoError(t, err)

	penalty := ChargeInput{
		CustomerID:      customerID,
		SubscriptionID:  &subID,
		Kind:            db_models.ChargeKindPenalty,
		Value:           decimal.RequireFromString("218.65"),
		GatewayBillCode: "PEN-1",
	}
	_, err = svc.PostCharge(context.Background(), penalty)
	require.NoError(t, err)

	require.NoError(t, svc.CancelForSubscription(context.Background(), subID.String(), ""))

	for _, e := range ledgerRepo.entries {
		if e.Kind == db_models.ChargeKindPenalty {
			assert.Equal(t, db_models.LedgerStatusAwaitingPayment, e.Status)
		} else {
			assert.Equal(t, db_models.LedgerStatusCancelled, e.Status)
		}
	}
}
