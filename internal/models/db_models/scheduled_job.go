package db_models

import (
	"github.com/google/uuid"
)

type JobKind string

const (
	JobKindSubscriptionExpiration JobKind = "subscription_expiration"
	JobKindBookingExpiration      JobKind = "booking_expiration"
)

// ScheduledJob is a one-shot job persisted for the in-process scheduler.
// Jobs survive restarts; the claim loop picks up anything past RunAt.
type ScheduledJob struct {
	BaseModel
	Kind     JobKind   `gorm:"type:job_kind;index:idx_job_due"`
	TargetID uuid.UUID `gorm:"index"`

	RunAt int64 `gorm:"index:idx_job_due"`
	Done  bool  `gorm:"default:false;index:idx_job_due"`
}
