package db_models

import (
	"github.com/google/uuid"
)

// MonthlyAllowance tracks consultation consumption per civil month, used
// for reporting alongside the per-cycle counters.
type MonthlyAllowance struct {
	BaseModel
	SubscriptionID uuid.UUID `gorm:"uniqueIndex:idx_allowance_sub_month"`
	CustomerID     uuid.UUID `gorm:"index"`

	Month int `gorm:"uniqueIndex:idx_allowance_sub_month"`
	Year  int `gorm:"uniqueIndex:idx_allowance_sub_month"`

	Allowance int `gorm:"default:4"`
	Used      int `gorm:"default:0"`
}
