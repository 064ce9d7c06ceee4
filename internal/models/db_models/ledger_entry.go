package db_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerStatus string

const (
	LedgerStatusAwaitingPayment LedgerStatus = "awaiting_payment"
	LedgerStatusApproved        LedgerStatus = "approved"
	LedgerStatusCancelled       LedgerStatus = "cancelled"
)

// LedgerEntry is one financial movement for a customer. Charges carry a
// positive value, refunds a negative one. At most one entry may be linked
// to a given cycle, which is what makes charge posting idempotent.
type LedgerEntry struct {
	BaseModel
	CustomerID     uuid.UUID  `gorm:"index"`
	SubscriptionID *uuid.UUID `gorm:"index"`
	InvoiceID      *uuid.UUID `gorm:"index"`
	CycleID        *uuid.UUID `gorm:"uniqueIndex"`

	Kind        ChargeKind      `gorm:"type:charge_kind"`
	Value       decimal.Decimal `gorm:"type:numeric(12,2)"`
	Status      LedgerStatus    `gorm:"type:ledger_status;index"`
	Description string

	// Bill code assigned by the gateway. Unique when present, so two
	// postings racing on the same bill collapse into one row.
	GatewayBillCode *string `gorm:"uniqueIndex"`
	DueAt           *int64
}
