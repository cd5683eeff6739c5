package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("payment not in required state")
	ErrAlreadyProcessed     = errors.New("provider reference already processed")
	ErrAlreadyClaimed       = errors.New("payment already claimed")
	ErrAmountMismatch       = errors.New("verified amount does not match payment total")
	ErrNotConfigured        = errors.New("required configuration missing")
	ErrProviderUnavailable  = errors.New("no provider registered for variant")
	ErrUnsupportedOperation = errors.New("operation not supported by provider")
	ErrVerificationFailed   = errors.New("provider verification failed")
	ErrRefundExists         = errors.New("active refund already exists for payment")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrSponsorshipExists    = errors.New("sponsorship already recorded for payment")
)
