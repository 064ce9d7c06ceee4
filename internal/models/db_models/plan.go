package db_models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PlanRecurrence string

const (
	RecurrenceMonthly    PlanRecurrence = "monthly"
	RecurrenceQuarterly  PlanRecurrence = "quarterly"
	RecurrenceSemiannual PlanRecurrence = "semiannual"
	RecurrenceOneOff     PlanRecurrence = "one_off"
)

// CommitmentDays returns the minimum-commitment period of the plan type.
// Monthly and one-off plans have none.
func (r PlanRecurrence) CommitmentDays() int {
	switch r {
	case RecurrenceQuarterly:
		return 90
	case RecurrenceSemiannual:
		return 180
	default:
		return 0
	}
}

type Plan struct {
	BaseModel
	Name        string
	Description *string
	// Price covers the whole recurrence period (30/90/180 days).
	Price        decimal.Decimal `gorm:"type:numeric(12,2)"`
	DurationDays int             `gorm:"default:30"`
	Recurrence   PlanRecurrence  `gorm:"type:plan_recurrence;index"`
	IsActive     bool            `gorm:"default:true"`

	// Catalog handles at the payment gateway
	GatewayPlanID    string
	GatewayProductID string

	Features datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}
