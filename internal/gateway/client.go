package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client is the payment gateway surface the billing services depend on.
// The production implementation talks to Vindi; tests swap in fakes.
type Client interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error)
	UpdateCustomer(ctx context.Context, gatewayCustomerID int64, req CustomerRequest) (*Customer, error)
	CreatePaymentProfile(ctx context.Context, gatewayCustomerID int64, gatewayToken string) (*PaymentProfile, error)

	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error)
	DeleteSubscription(ctx context.Context, gatewaySubscriptionID int64) error

	CreateBill(ctx context.Context, req BillRequest) (*Bill, error)
	CreatePenaltyBill(ctx context.Context, gatewayCustomerID int64, amount string) (*Bill, error)
	GetBillByID(ctx context.Context, billID int64) (*Bill, error)
	GetBillsByCustomerID(ctx context.Context, gatewayCustomerID int64, status string) ([]Bill, error)
	GetBillsBySubscriptionID(ctx context.Context, gatewaySubscriptionID int64) ([]Bill, error)
	ApplyDiscountToBill(ctx context.Context, billID int64, amount string) (*Bill, error)
}

type CustomerRequest struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	RegistryCode string   `json:"registry_code,omitempty"`
	Code         string   `json:"code,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Address      *Address `json:"address,omitempty"`
}

type Address struct {
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipcode,omitempty"`
	Country      string `json:"country,omitempty"`
}

type Customer struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

type PaymentProfile struct {
	ID            int64  `json:"id"`
	Status        string `json:"status"`
	PaymentMethod struct {
		Code string `json:"code"`
	} `json:"payment_method"`
}

type SubscriptionRequest struct {
	PlanID            int64  `json:"plan_id"`
	CustomerID        int64  `json:"customer_id"`
	PaymentMethodCode string `json:"payment_method_code"`
	// RFC3339; when set the gateway defers the first charge to this instant.
	StartAt string `json:"start_at,omitempty"`
}

type Subscription struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	StartAt  string `json:"start_at"`
	Customer struct {
		ID int64 `json:"id"`
	} `json:"customer"`
	Plan struct {
		ID int64 `json:"id"`
	} `json:"plan"`
}

type BillItemRequest struct {
	ProductID int64 `json:"product_id"`
	// Decimal string, e.g. "299.90". Negative amounts are discounts.
	Amount string `json:"amount"`
}

type BillRequest struct {
	CustomerID        int64             `json:"customer_id"`
	PaymentMethodCode string            `json:"payment_method_code,omitempty"`
	DueAt             string            `json:"due_at,omitempty"`
	BillItems         []BillItemRequest `json:"bill_items"`
}

type Bill struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Amount string `json:"amount"`
	Status string `json:"status"`
	DueAt  string `json:"due_at"`
	URL    string `json:"url"`

	Customer struct {
		ID   int64  `json:"id"`
		Code string `json:"code"`
	} `json:"customer"`
	Subscription *struct {
		ID int64 `json:"id"`
	} `json:"subscription"`
}

// ParamError is one field-level rejection reported by the gateway.
type ParamError struct {
	Parameter string `json:"parameter"`
	Message   string `json:"message"`
}

// Error carries everything the gateway told us about a failed call.
// Transient marks failures worth one retry (timeouts, 5xx, rate limits);
// validation rejections are permanent.
type Error struct {
	Op             string
	StatusCode     int
	Status         string
	GatewayMessage string
	Params         []ParamError
	Transient      bool
	Err            error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gateway %s: %s", e.Op, e.GatewayMessage)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (http %d)", e.StatusCode)
	}
	for _, p := range e.Params {
		fmt.Fprintf(&b, "; %s: %s", p.Parameter, p.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a gateway error worth retrying once.
func IsTransient(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Transient
	}
	return false
}
