package db_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "pending"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusCanceled InvoiceStatus = "canceled"
)

// ChargeKind classifies what a charge is for. Shared by invoices and
// ledger entries so cancellation can skip penalty charges.
type ChargeKind string

const (
	ChargeKindPlan      ChargeKind = "plan"
	ChargeKindPenalty   ChargeKind = "penalty"
	ChargeKindUpgrade   ChargeKind = "upgrade"
	ChargeKindDowngrade ChargeKind = "downgrade"
)

type Invoice struct {
	BaseModel
	CustomerID     uuid.UUID  `gorm:"index"`
	SubscriptionID *uuid.UUID `gorm:"index"`

	Kind   ChargeKind      `gorm:"type:charge_kind"`
	Value  decimal.Decimal `gorm:"type:numeric(12,2)"`
	Status InvoiceStatus   `gorm:"type:invoice_status;index"`

	// Bill code assigned by the payment gateway. Unique when present.
	GatewayBillCode *string `gorm:"uniqueIndex"`
	DueAt           *int64
	PaidAt          *int64
}
