package db_models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubStatusAwaitingPayment SubscriptionStatus = "awaiting_payment"
	SubStatusActive          SubscriptionStatus = "active"
	SubStatusCancelled       SubscriptionStatus = "cancelled"
	SubStatusExpired         SubscriptionStatus = "expired"
)

type Subscription struct {
	BaseModel
	CustomerID uuid.UUID `gorm:"index"`
	PlanID     uuid.UUID `gorm:"index"`

	Status SubscriptionStatus `gorm:"type:subscription_status;index"`
	// Unix seconds; EndsAt is zero until the subscription reaches a terminal state
	// or its duration-based end is computed.
	StartsAt    int64 `gorm:"not null"`
	EndsAt      int64
	CancelledAt *int64

	GatewaySubscriptionID string `gorm:"index"`

	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'"`

	Customer Customer `gorm:"foreignKey:CustomerID"`
	Plan     Plan     `gorm:"foreignKey:PlanID"`
}

// Terminal reports whether the subscription can never bill again.
func (s *Subscription) Terminal() bool {
	return s.Status == SubStatusCancelled || s.Status == SubStatusExpired
}
