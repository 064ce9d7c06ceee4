package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds Vindi credentials and the product catalogue handles the
// billing flows need. APIKey is the private key sent via basic auth.
type Config struct {
	BaseURL string
	APIKey  string

	// Catalogue products used for ad-hoc charges.
	PenaltyProductID  int64
	DiscountProductID int64

	PaymentMethodCode string
	Timeout           time.Duration
}

func ConfigFromEnv() Config {
	penaltyID, _ := strconv.ParseInt(os.Getenv("VINDI_PENALTY_PRODUCT_ID"), 10, 64)
	discountID, _ := strconv.ParseInt(os.Getenv("VINDI_DISCOUNT_PRODUCT_ID"), 10, 64)

	base := os.Getenv("VINDI_API_URL")
	if base == "" {
		base = "https://app.vindi.com.br/api/v1"
	}
	method := os.Getenv("VINDI_PAYMENT_METHOD")
	if method == "" {
		method = "credit_card"
	}

	return Config{
		BaseURL:           base,
		APIKey:            os.Getenv("VINDI_API_KEY"),
		PenaltyProductID:  penaltyID,
		DiscountProductID: discountID,
		PaymentMethodCode: method,
		Timeout:           15 * time.Second,
	}
}

type vindiClient struct {
	cfg  Config
	http *http.Client
}

func NewVindiClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing vindi api key")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &vindiClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (v *vindiClient) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	var out struct {
		Customer Customer `json:"customer"`
	}
	if err := v.do(ctx, "create_customer", http.MethodPost, "/customers", req, &out); err != nil {
		return nil, err
	}
	return &out.Customer, nil
}

func (v *vindiClient) UpdateCustomer(ctx context.Context, gatewayCustomerID int64, req CustomerRequest) (*Customer, error) {
	var out struct {
		Customer Customer `json:"customer"`
	}
	path := fmt.Sprintf("/customers/%d", gatewayCustomerID)
	if err := v.do(ctx, "update_customer", http.MethodPut, path, req, &out); err != nil {
		return nil, err
	}
	return &out.Customer, nil
}

func (v *vindiClient) CreatePaymentProfile(ctx context.Context, gatewayCustomerID int64, gatewayToken string) (*PaymentProfile, error) {
	body := map[string]interface{}{
		"customer_id":         gatewayCustomerID,
		"gateway_token":       gatewayToken,
		"payment_method_code": v.cfg.PaymentMethodCode,
	}
	var out struct {
		PaymentProfile PaymentProfile `json:"payment_profile"`
	}
	if err := v.do(ctx, "create_payment_profile", http.MethodPost, "/payment_profiles", body, &out); err != nil {
		return nil, err
	}
	return &out.PaymentProfile, nil
}

func (v *vindiClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Subscription, error) {
	if req.PaymentMethodCode == "" {
		req.PaymentMethodCode = v.cfg.PaymentMethodCode
	}
	var out struct {
		Subscription Subscription `json:"subscription"`
	}
	if err := v.do(ctx, "create_subscription", http.MethodPost, "/subscriptions", req, &out); err != nil {
		return nil, err
	}
	return &out.Subscription, nil
}

func (v *vindiClient) DeleteSubscription(ctx context.Context, gatewaySubscriptionID int64) error {
	path := fmt.Sprintf("/subscriptions/%d?cancel_bills=false", gatewaySubscriptionID)
	return v.do(ctx, "delete_subscription", http.MethodDelete, path, nil, nil)
}

func (v *vindiClient) CreateBill(ctx context.Context, req BillRequest) (*Bill, error) {
	if req.PaymentMethodCode == "" {
		req.PaymentMethodCode = v.cfg.PaymentMethodCode
	}
	var out struct {
		Bill Bill `json:"bill"`
	}
	if err := v.do(ctx, "create_bill", http.MethodPost, "/bills", req, &out); err != nil {
		return nil, err
	}
	return &out.Bill, nil
}

// CreatePenaltyBill raises a one-off bill for an early termination fee
// using the configured penalty catalogue product.
func (v *vindiClient) CreatePenaltyBill(ctx context.Context, gatewayCustomerID int64, amount string) (*Bill, error) {
	return v.CreateBill(ctx, BillRequest{
		CustomerID: gatewayCustomerID,
		BillItems: []BillItemRequest{
			{ProductID: v.cfg.PenaltyProductID, Amount: amount},
		},
	})
}

func (v *vindiClient) GetBillByID(ctx context.Context, billID int64) (*Bill, error) {
	var out struct {
		Bill Bill `json:"bill"`
	}
	path := fmt.Sprintf("/bills/%d", billID)
	if err := v.do(ctx, "get_bill", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Bill, nil
}

func (v *vindiClient) GetBillsByCustomerID(ctx context.Context, gatewayCustomerID int64, status string) ([]Bill, error) {
	query := fmt.Sprintf("customer_id=%d", gatewayCustomerID)
	if status != "" {
		query += " status=" + status
	}
	path := "/bills?query=" + url.QueryEscape(query)

	var out struct {
		Bills []Bill `json:"bills"`
	}
	if err := v.do(ctx, "list_bills_by_customer", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Bills, nil
}

func (v *vindiClient) GetBillsBySubscriptionID(ctx context.Context, gatewaySubscriptionID int64) ([]Bill, error) {
	query := fmt.Sprintf("subscription_id=%d", gatewaySubscriptionID)
	path := "/bills?query=" + url.QueryEscape(query)

	var out struct {
		Bills []Bill `json:"bills"`
	}
	if err := v.do(ctx, "list_bills_by_subscription", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Bills, nil
}

func (v *vindiClient) ApplyDiscountToBill(ctx context.Context, billID int64, amount string) (*Bill, error) {
	body := map[string]interface{}{
		"bill_items": []BillItemRequest{
			{ProductID: v.cfg.DiscountProductID, Amount: "-" + amount},
		},
	}
	var out struct {
		Bill Bill `json:"bill"`
	}
	path := fmt.Sprintf("/bills/%d", billID)
	if err := v.do(ctx, "apply_discount", http.MethodPut, path, body, &out); err != nil {
		return nil, err
	}
	return &out.Bill, nil
}

func (v *vindiClient) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, GatewayMessage: "failed to encode request", Err: err}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.cfg.BaseURL+path, reader)
	if err != nil {
		return &Error{Op: op, GatewayMessage: "failed to build request", Err: err}
	}
	req.SetBasicAuth(v.cfg.APIKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		// Network failures and client timeouts are retryable.
		return &Error{Op: op, GatewayMessage: "request failed", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, GatewayMessage: "failed to read response", Transient: true, Err: err}
	}

	if resp.StatusCode >= 400 {
		return formatError(op, resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{Op: op, StatusCode: resp.StatusCode, GatewayMessage: "failed to decode response", Err: err}
		}
	}
	return nil
}

// formatError turns a Vindi error payload into a structured Error. The
// gateway reports field rejections as {"errors":[{"id","parameter","message"}]}.
func formatError(op string, statusCode int, raw []byte) *Error {
	gwErr := &Error{
		Op:             op,
		StatusCode:     statusCode,
		Status:         http.StatusText(statusCode),
		GatewayMessage: "gateway request rejected",
		Transient:      statusCode >= 500 || statusCode == http.StatusTooManyRequests,
	}

	var payload struct {
		Errors []struct {
			ID        string `json:"id"`
			Parameter string `json:"parameter"`
			Message   string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Errors) == 0 {
		return gwErr
	}

	gwErr.GatewayMessage = payload.Errors[0].Message
	for _, e := range payload.Errors {
		if e.Parameter == "" {
			continue
		}
		gwErr.Params = append(gwErr.Params, ParamError{Parameter: e.Parameter, Message: e.Message})
	}
	return gwErr
}
