package repositories

import (
	"context"
	"errors"
	"gorm.io/gorm"

	"mentis/internal/models/db_models"
)

type ISubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *db_models.Subscription) error
	GetSubscriptionById(ctx context.Context, subID string) (*db_models.Subscription, error)
	GetSubscriptionByGatewayId(ctx context.Context, gatewaySubID string) (*db_models.Subscription, error)
	FindNonTerminalByCustomer(ctx context.Context, customerID string) (*db_models.Subscription, error)
	FindLatestByCustomer(ctx context.Context, customerID string) (*db_models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *db_models.Subscription) error
	ListDueForExpiration(ctx context.Context, nowUnix int64) ([]db_models.Subscription, error)
	ListEndingBetween(ctx context.Context, fromUnix, toUnix int64) ([]db_models.Subscription, error)
}

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) ISubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (s SubscriptionRepository) CreateSubscription(ctx context.Context, sub *db_models.Subscription) error {
	return s.db.WithContext(ctx).Create(sub).Error
}

func (s SubscriptionRepository) GetSubscriptionById(ctx context.Context, subID string) (*db_models.Subscription, error) {

	var sub db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Preload("Customer").
		First(&sub, "id = ?", subID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

func (s SubscriptionRepository) GetSubscriptionByGatewayId(ctx context.Context, gatewaySubID string) (*db_models.Subscription, error) {

	var sub db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Preload("Customer").
		First(&sub, "gateway_subscription_id = ?", gatewaySubID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

// FindNonTerminalByCustomer returns the customer's subscription that can
// still bill (active or awaiting payment), newest first.
func (s SubscriptionRepository) FindNonTerminalByCustomer(ctx context.Context, customerID string) (*db_models.Subscription, error) {

	var sub db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Preload("Customer").
		Where("customer_id = ? AND status IN ?", customerID,
			[]db_models.SubscriptionStatus{db_models.SubStatusActive, db_models.SubStatusAwaitingPayment}).
		Order("created_at DESC").
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

// FindLatestByCustomer returns the customer's most recent subscription in
// any state. Callers that need to explain why an operation is impossible
// (already cancelled, expired) use this instead of the billable lookup.
func (s SubscriptionRepository) FindLatestByCustomer(ctx context.Context, customerID string) (*db_models.Subscription, error) {

	var sub db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Preload("Customer").
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

func (s SubscriptionRepository) UpdateSubscription(ctx context.Context, sub *db_models.Subscription) error {
	return s.db.WithContext(ctx).Save(sub).Error
}

func (s SubscriptionRepository) ListDueForExpiration(ctx context.Context, nowUnix int64) ([]db_models.Subscription, error) {

	var subs []db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Preload("Customer").
		Where("status = ? AND ends_at > 0 AND ends_at <= ?", db_models.SubStatusActive, nowUnix).
		Find(&subs).Error

	if err != nil {
		return nil, err
	}

	return subs, nil
}

func (s SubscriptionRepository) ListEndingBetween(ctx context.Context, fromUnix, toUnix int64) ([]db_models.Subscription, error) {

	var subs []db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Preload("Customer").
		Where("status = ? AND ends_at > ? AND ends_at <= ?", db_models.SubStatusActive, fromUnix, toUnix).
		Find(&subs).Error

	if err != nil {
		return nil, err
	}

	return subs, nil
}
