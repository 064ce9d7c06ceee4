package repositories

import (
	"context"
	"errors"
	"gorm.io/gorm"

	"mentis/internal/models/db_models"
)

type ICustomerRepository interface {
	CreateCustomer(ctx context.Context, customer *db_models.Customer) error
	GetCustomerById(ctx context.Context, customerID string) (*db_models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*db_models.Customer, error)
	GetCustomerByGatewayId(ctx context.Context, gatewayCustomerID string) (*db_models.Customer, error)
	UpdateCustomer(ctx context.Context, customer *db_models.Customer) error
}

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) ICustomerRepository {
	return &CustomerRepository{db: db}
}

func (c CustomerRepository) CreateCustomer(ctx context.Context, customer *db_models.Customer) error {
	return c.db.WithContext(ctx).Create(customer).Error
}

func (c CustomerRepository) GetCustomerById(ctx context.Context, customerID string) (*db_models.Customer, error) {

	var customer db_models.Customer
	err := c.db.WithContext(ctx).First(&customer, "id = ?", customerID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &customer, nil
}

func (c CustomerRepository) GetCustomerByEmail(ctx context.Context, email string) (*db_models.Customer, error) {

	var customer db_models.Customer
	err := c.db.WithContext(ctx).First(&customer, "email = ?", email).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &customer, nil
}

func (c CustomerRepository) GetCustomerByGatewayId(ctx context.Context, gatewayCustomerID string) (*db_models.Customer, error) {

	var customer db_models.Customer
	err := c.db.WithContext(ctx).First(&customer, "gateway_customer_id = ?", gatewayCustomerID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &customer, nil
}

func (c CustomerRepository) UpdateCustomer(ctx context.Context, customer *db_models.Customer) error {
	return c.db.WithContext(ctx).Save(customer).Error
}
