package response_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PlanResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Recurrence   string          `json:"recurrence"`
	DurationDays int             `json:"duration_days"`
	IsActive     bool            `json:"is_active"`
}

type CycleResponse struct {
	ID         uuid.UUID `json:"id"`
	CycleStart string    `json:"cycle_start"`
	CycleEnd   string    `json:"cycle_end"`
	Status     string    `json:"status"`
	Allowance  int       `json:"allowance"`
	Used       int       `json:"used"`
}

type SubscriptionResponse struct {
	ID       uuid.UUID      `json:"id"`
	PlanID   uuid.UUID      `json:"plan_id"`
	PlanName string         `json:"plan_name,omitempty"`
	Status   string         `json:"status"`
	StartsAt string         `json:"starts_at"`
	EndsAt   string         `json:"ends_at,omitempty"`
	Cycle    *CycleResponse `json:"cycle,omitempty"`
}

type PurchaseResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	// Checkout link for the first bill when the gateway issued one.
	PaymentURL string `json:"payment_url,omitempty"`
}

// CancelResponse reports the financial outcome of a cancellation.
type CancelResponse struct {
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	Status         string          `json:"status"`
	DaysUsed       int             `json:"days_used"`
	Withdrawal     bool            `json:"withdrawal"`
	Refund         decimal.Decimal `json:"refund"`
	Penalty        decimal.Decimal `json:"penalty"`
	Reason         string          `json:"reason,omitempty"`
}

type ChangePlanResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
	Discount     decimal.Decimal      `json:"discount"`
	Penalty      decimal.Decimal      `json:"penalty"`
	PaymentURL   string               `json:"payment_url,omitempty"`
}

type LedgerEntryResponse struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	Status      string          `json:"status"`
	Description string          `json:"description,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

type ConsumeResponse struct {
	CycleID   uuid.UUID `json:"cycle_id"`
	Allowance int       `json:"allowance"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
}
