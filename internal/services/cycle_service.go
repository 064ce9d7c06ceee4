package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mentis/internal/models/db_models"
	"mentis/internal/models/response_models"
	"mentis/internal/repositories"
	"mentis/pkg/utils"
)

type CycleServiceInterface interface {
	OpenCycle(ctx context.Context, sub *db_models.Subscription, start time.Time) (*db_models.Cycle, error)
	OpenPendingCycle(ctx context.Context, sub *db_models.Subscription, start time.Time) (*db_models.Cycle, error)
	ActivateCycle(ctx context.Context, sub *db_models.Subscription, start time.Time) (*db_models.Cycle, error)
	RolloverIfDue(ctx context.Context, sub *db_models.Subscription, now time.Time) (*db_models.Cycle, error)
	GetActiveCycle(ctx context.Context, subID string) (*db_models.Cycle, error)
	Consume(ctx context.Context, sub *db_models.Subscription, now time.Time) (*response_models.ConsumeResponse, error)
	TotalConsumed(ctx context.Context, subID string) (int, error)
	CloseCycles(ctx context.Context, subID string) error
}

func NewCycleService(cycleRepo repositories.ICycleRepository) CycleServiceInterface {
	return &CycleService{
		cycleRepo: cycleRepo,
	}
}

type CycleService struct {
	cycleRepo repositories.ICycleRepository
}

// OpenCycle starts a fresh 30-day cycle for the subscription with a full
// consultation allowance.
func (c *CycleService) OpenCycle(ctx context.Context, sub *db_models.Subscription, start time.Time) (*db_models.Cycle, error) {

	cycle, err := c.createCycle(ctx, sub, start, db_models.CycleStatusActive)
	if err != nil {
		return nil, err
	}

	c.syncMonthlyAllowance(ctx, cycle, utils.FromUnixSecondsBR(cycle.CycleStart))

	return cycle, nil
}

// OpenPendingCycle creates the cycle at purchase time, before the first
// payment confirms. It carries no allowance reporting until activated.
func (c *CycleService) OpenPendingCycle(ctx context.Context, sub *db_models.Subscription, start time.Time) (*db_models.Cycle, error) {
	return c.createCycle(ctx, sub, start, db_models.CycleStatusPending)
}

// ActivateCycle flips the subscription's pending cycle to active once the
// first payment confirms, re-anchoring its boundaries to the confirmation
// start. When no pending cycle exists the activation is logged and a
// fresh cycle opened instead.
func (c *CycleService) ActivateCycle(ctx context.Context, sub *db_models.Subscription, start time.Time) (*db_models.Cycle, error) {

	pending, err := c.cycleRepo.GetPendingCycleBySubscription(ctx, sub.ID.String())
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if pending == nil {
		log.Printf("no pending cycle for subscription %s, opening a fresh one", sub.ID)
		return c.OpenCycle(ctx, sub, start)
	}

	dates := utils.ComputeCycle(start)
	pending.Status = db_models.CycleStatusActive
	pending.CycleStart = dates.CycleStart.Unix()
	pending.CycleEnd = dates.CycleEnd.Unix()

	if err := c.cycleRepo.UpdateCycle(ctx, pending); err != nil {
		return nil, utils.ErrDatabaseError
	}

	c.syncMonthlyAllowance(ctx, pending, dates.CycleStart)

	return pending, nil
}

func (c *CycleService) createCycle(ctx context.Context, sub *db_models.Subscription, start time.Time, status db_models.CycleStatus) (*db_models.Cycle, error) {

	dates := utils.ComputeCycle(start)
	if v := utils.ValidateCycle(dates.CycleStart, dates.CycleEnd, dates.DueDate); !v.Valid {
		return nil, fmt.Errorf("%w: %v", utils.ErrInvalidDate, v.Errors)
	} else if len(v.Warnings) > 0 {
		log.Printf("cycle warnings for subscription %s: %v", sub.ID, v.Warnings)
	}

	cycle := &db_models.Cycle{
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		CycleStart:     dates.CycleStart.Unix(),
		CycleEnd:       dates.CycleEnd.Unix(),
		Status:         status,
		Allowance:      db_models.DefaultAllowance,
		Used:           0,
	}

	if err := c.cycleRepo.CreateCycle(ctx, cycle); err != nil {
		return nil, utils.ErrDatabaseError
	}

	return cycle, nil
}

// RolloverIfDue completes the active cycle once its end has passed and
// opens the next one, starting exactly where the previous cycle ended so
// no day of coverage is lost or doubled. Returns the cycle that should be
// consumed from.
func (c *CycleService) RolloverIfDue(ctx context.Context, sub *db_models.Subscription, now time.Time) (*db_models.Cycle, error) {

	current, err := c.cycleRepo.GetActiveCycleBySubscription(ctx, sub.ID.String())
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if current == nil {
		return nil, utils.ErrCycleNotFound
	}

	if now.Unix() < current.CycleEnd {
		return current, nil
	}

	current.Status = db_models.CycleStatusCompleted
	if err := c.cycleRepo.UpdateCycle(ctx, current); err != nil {
		return nil, utils.ErrDatabaseError
	}

	next, err := c.OpenCycle(ctx, sub, utils.FromUnixSecondsBR(current.CycleEnd))
	if err != nil {
		return nil, err
	}

	// Skip forward when the subscription slept through several periods.
	for now.Unix() >= next.CycleEnd {
		next.Status = db_models.CycleStatusExpired
		if err := c.cycleRepo.UpdateCycle(ctx, next); err != nil {
			return nil, utils.ErrDatabaseError
		}
		next, err = c.OpenCycle(ctx, sub, utils.FromUnixSecondsBR(next.CycleEnd))
		if err != nil {
			return nil, err
		}
	}

	return next, nil
}

func (c *CycleService) GetActiveCycle(ctx context.Context, subID string) (*db_models.Cycle, error) {

	cycle, err := c.cycleRepo.GetActiveCycleBySubscription(ctx, subID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if cycle == nil {
		return nil, utils.ErrCycleNotFound
	}

	return cycle, nil
}

// Consume burns one consultation from the subscription's current cycle,
// rolling the cycle over first when its period has lapsed.
func (c *CycleService) Consume(ctx context.Context, sub *db_models.Subscription, now time.Time) (*response_models.ConsumeResponse, error) {

	if sub.Status != db_models.SubStatusActive {
		return nil, utils.ErrSubscriptionNotActive
	}

	cycle, err := c.RolloverIfDue(ctx, sub, now)
	if err != nil {
		return nil, err
	}

	ok, err := c.cycleRepo.ConsumeUnit(ctx, cycle.ID.String())
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if !ok {
		return nil, utils.ErrAllowanceExhausted
	}

	cycle.Used++
	c.syncMonthlyAllowance(ctx, cycle, now)

	return &response_models.ConsumeResponse{
		CycleID:   cycle.ID,
		Allowance: cycle.Allowance,
		Used:      cycle.Used,
		Remaining: cycle.Allowance - cycle.Used,
	}, nil
}

// TotalConsumed sums consultations used across every cycle the
// subscription ever had, not just the one currently open.
func (c *CycleService) TotalConsumed(ctx context.Context, subID string) (int, error) {

	cycles, err := c.cycleRepo.ListCyclesBySubscription(ctx, subID)
	if err != nil {
		return 0, utils.ErrDatabaseError
	}

	total := 0
	for i := range cycles {
		total += cycles[i].Used
	}
	return total, nil
}

// CloseCycles cancels whatever cycles the subscription still has open.
func (c *CycleService) CloseCycles(ctx context.Context, subID string) error {
	if err := c.cycleRepo.CancelActiveBySubscription(ctx, subID); err != nil {
		return utils.ErrDatabaseError
	}
	return nil
}

// syncMonthlyAllowance mirrors cycle consumption into the per-civil-month
// report row. Reporting only; failures are logged, never surfaced.
func (c *CycleService) syncMonthlyAllowance(ctx context.Context, cycle *db_models.Cycle, at time.Time) {

	at = at.In(utils.BillingLocation())
	row := &db_models.MonthlyAllowance{
		SubscriptionID: cycle.SubscriptionID,
		CustomerID:     cycle.CustomerID,
		Month:          int(at.Month()),
		Year:           at.Year(),
		Allowance:      cycle.Allowance,
		Used:           cycle.Used,
	}

	if err := c.cycleRepo.UpsertMonthlyAllowance(ctx, row); err != nil {
		log.Printf("failed to sync monthly allowance for cycle %s: %v", cycle.ID, err)
	}
}
