package db_models

import (
	"github.com/google/uuid"
)

type CycleStatus string

const (
	CycleStatusPending   CycleStatus = "pending"
	CycleStatusActive    CycleStatus = "active"
	CycleStatusCancelled CycleStatus = "cancelled"
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusExpired   CycleStatus = "expired"
)

// DefaultAllowance is the number of consultations granted per 30-day cycle.
const DefaultAllowance = 4

type Cycle struct {
	BaseModel
	SubscriptionID uuid.UUID `gorm:"index"`
	CustomerID     uuid.UUID `gorm:"index"`

	// Unix seconds. Cycles are always 30 days regardless of plan recurrence.
	CycleStart int64 `gorm:"not null"`
	CycleEnd   int64 `gorm:"not null"`

	Status CycleStatus `gorm:"type:cycle_status;index"`

	Allowance int `gorm:"default:4"`
	Used      int `gorm:"default:0"`

	Subscription Subscription `gorm:"foreignKey:SubscriptionID"`
}

func (c *Cycle) Exhausted() bool {
	return c.Used >= c.Allowance
}
