package utils

import "errors"

var (
	ErrValidation               = errors.New("validation error")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrInvalidDate              = errors.New("invalid date")
	ErrPlanNotFound             = errors.New("plan not found")
	ErrCustomerNotFound         = errors.New("customer not found")
	ErrSubscriptionNotFound     = errors.New("subscription not found")
	ErrCycleNotFound            = errors.New("cycle not found")
	ErrActiveSubscriptionExists = errors.New("customer already has an active subscription")
	ErrAllowanceExhausted       = errors.New("cycle allowance exhausted")
	ErrSubscriptionNotActive    = errors.New("subscription is not active")
	ErrAlreadyCancelled         = errors.New("subscription already cancelled")
	ErrSubscriptionExpired      = errors.New("subscription expired")
	ErrAwaitingPayment          = errors.New("subscription awaiting payment confirmation")
	ErrInvalidPage              = errors.New("invalid page parameter")
	ErrInvalidPageSize          = errors.New("invalid page size parameter")
	ErrDatabaseError            = errors.New("database error")
)
