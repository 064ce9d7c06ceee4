package services

import (
	"context"
	"fmt"

	"mentis/internal/models/db_models"
	"mentis/internal/models/request_models"
	"mentis/internal/repositories"
	"mentis/pkg/utils"
)

type CustomerServiceInterface interface {
	Register(ctx context.Context, req request_models.RegisterCustomerRequest) (*db_models.Customer, string, error)
	Login(ctx context.Context, req request_models.LoginRequest) (*db_models.Customer, string, error)
	GetCustomer(ctx context.Context, customerID string) (*db_models.Customer, error)
}

func NewCustomerService(customerRepo repositories.ICustomerRepository) CustomerServiceInterface {
	return &CustomerService{
		customerRepo: customerRepo,
	}
}

type CustomerService struct {
	customerRepo repositories.ICustomerRepository
}

// Register creates the local customer record and issues an access token.
// The gateway-side customer is created lazily on first purchase.
func (c *CustomerService) Register(ctx context.Context, req request_models.RegisterCustomerRequest) (*db_models.Customer, string, error) {

	existing, err := c.customerRepo.GetCustomerByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", utils.ErrDatabaseError
	}
	if existing != nil {
		return nil, "", fmt.Errorf("%w: email already registered", utils.ErrValidation)
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	customer := &db_models.Customer{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hashed,
		Document:     req.Document,
		Phone:        req.Phone,
		Street:       req.Street,
		Number:       req.Number,
		District:     req.District,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
	}

	if err := c.customerRepo.CreateCustomer(ctx, customer); err != nil {
		return nil, "", utils.ErrDatabaseError
	}

	token, err := utils.CreateToken(customer.ID, "customer")
	if err != nil {
		return nil, "", err
	}

	return customer, token, nil
}

func (c *CustomerService) Login(ctx context.Context, req request_models.LoginRequest) (*db_models.Customer, string, error) {

	customer, err := c.customerRepo.GetCustomerByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", utils.ErrDatabaseError
	}
	if customer == nil {
		return nil, "", utils.ErrInvalidCredentials
	}

	if err := utils.ComparePasswords(customer.PasswordHash, req.Password); err != nil {
		return nil, "", utils.ErrInvalidCredentials
	}

	token, err := utils.CreateToken(customer.ID, "customer")
	if err != nil {
		return nil, "", err
	}

	return customer, token, nil
}

func (c *CustomerService) GetCustomer(ctx context.Context, customerID string) (*db_models.Customer, error) {

	customer, err := c.customerRepo.GetCustomerById(ctx, customerID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if customer == nil {
		return nil, utils.ErrCustomerNotFound
	}

	return customer, nil
}
