package repositories

import (
	"context"
	"errors"
	"gorm.io/gorm"

	"mentis/internal/models/db_models"
)

type ICycleRepository interface {
	CreateCycle(ctx context.Context, cycle *db_models.Cycle) error
	GetCycleById(ctx context.Context, cycleID string) (*db_models.Cycle, error)
	GetActiveCycleBySubscription(ctx context.Context, subID string) (*db_models.Cycle, error)
	GetPendingCycleBySubscription(ctx context.Context, subID string) (*db_models.Cycle, error)
	ListCyclesBySubscription(ctx context.Context, subID string) ([]db_models.Cycle, error)
	UpdateCycle(ctx context.Context, cycle *db_models.Cycle) error
	ConsumeUnit(ctx context.Context, cycleID string) (bool, error)
	CancelActiveBySubscription(ctx context.Context, subID string) error

	UpsertMonthlyAllowance(ctx context.Context, row *db_models.MonthlyAllowance) error
	GetMonthlyAllowance(ctx context.Context, subID string, month, year int) (*db_models.MonthlyAllowance, error)
}

type CycleRepository struct {
	db *gorm.DB
}

func NewCycleRepository(db *gorm.DB) ICycleRepository {
	return &CycleRepository{db: db}
}

func (c CycleRepository) CreateCycle(ctx context.Context, cycle *db_models.Cycle) error {
	return c.db.WithContext(ctx).Create(cycle).Error
}

func (c CycleRepository) GetCycleById(ctx context.Context, cycleID string) (*db_models.Cycle, error) {

	var cycle db_models.Cycle
	err := c.db.WithContext(ctx).First(&cycle, "id = ?", cycleID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cycle, nil
}

func (c CycleRepository) GetActiveCycleBySubscription(ctx context.Context, subID string) (*db_models.Cycle, error) {

	var cycle db_models.Cycle
	err := c.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ?", subID, db_models.CycleStatusActive).
		Order("cycle_start DESC").
		First(&cycle).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cycle, nil
}

// GetPendingCycleBySubscription finds the cycle created at purchase that
// is still waiting for the first payment.
func (c CycleRepository) GetPendingCycleBySubscription(ctx context.Context, subID string) (*db_models.Cycle, error) {

	var cycle db_models.Cycle
	err := c.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ?", subID, db_models.CycleStatusPending).
		Order("cycle_start DESC").
		First(&cycle).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cycle, nil
}

func (c CycleRepository) ListCyclesBySubscription(ctx context.Context, subID string) ([]db_models.Cycle, error) {

	var cycles []db_models.Cycle
	err := c.db.WithContext(ctx).
		Where("subscription_id = ?", subID).
		Order("cycle_start ASC").
		Find(&cycles).Error

	if err != nil {
		return nil, err
	}

	return cycles, nil
}

func (c CycleRepository) UpdateCycle(ctx context.Context, cycle *db_models.Cycle) error {
	return c.db.WithContext(ctx).Save(cycle).Error
}

// ConsumeUnit burns one consultation from the cycle's allowance. The guard
// lives in the WHERE clause so two concurrent consumers cannot both take
// the last unit; false means the allowance was already exhausted.
func (c CycleRepository) ConsumeUnit(ctx context.Context, cycleID string) (bool, error) {

	result := c.db.WithContext(ctx).
		Model(&db_models.Cycle{}).
		Where("id = ? AND status = ? AND used < allowance", cycleID, db_models.CycleStatusActive).
		UpdateColumn("used", gorm.Expr("used + 1"))

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// CancelActiveBySubscription flips the subscription's open cycles to
// cancelled and zeroes their remaining allowance.
func (c CycleRepository) CancelActiveBySubscription(ctx context.Context, subID string) error {

	return c.db.WithContext(ctx).
		Model(&db_models.Cycle{}).
		Where("subscription_id = ? AND status IN ?", subID,
			[]db_models.CycleStatus{db_models.CycleStatusActive, db_models.CycleStatusPending}).
		Updates(map[string]interface{}{
			"status":    db_models.CycleStatusCancelled,
			"allowance": gorm.Expr("used"),
		}).Error
}

func (c CycleRepository) UpsertMonthlyAllowance(ctx context.Context, row *db_models.MonthlyAllowance) error {

	existing, err := c.GetMonthlyAllowance(ctx, row.SubscriptionID.String(), row.Month, row.Year)
	if err != nil {
		return err
	}
	if existing == nil {
		return c.db.WithContext(ctx).Create(row).Error
	}

	existing.Used = row.Used
	existing.Allowance = row.Allowance
	return c.db.WithContext(ctx).Save(existing).Error
}

func (c CycleRepository) GetMonthlyAllowance(ctx context.Context, subID string, month, year int) (*db_models.MonthlyAllowance, error) {

	var row db_models.MonthlyAllowance
	err := c.db.WithContext(ctx).
		Where("subscription_id = ? AND month = ? AND year = ?", subID, month, year).
		First(&row).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &row, nil
}
