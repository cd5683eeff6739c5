package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentProvider string

const (
	ProviderSolana PaymentProvider = "solana"
	ProviderManual PaymentProvider = "manual"
	ProviderPayPal PaymentProvider = "paypal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one attempted transfer from a supporter to a beneficiary.
// UserID is nil for anonymous manual-rail payments until a Claim attaches
// them to an account. ProviderRef is the external proof of transfer and is
// unique across all payments once set.
type Payment struct {
	ID                 uuid.UUID
	UserID             *uuid.UUID
	BeneficiaryID      *uuid.UUID
	Purpose            string
	AmountCents        int64
	SupportAmountCents int64
	Provider           PaymentProvider
	ProviderRef        *string
	Status             PaymentStatus
	DerivationIndex    *int64
	DepositAddress     *string
	BuyerContact       *string
	ExpiresAt          *time.Time
	ClaimedBy          *uuid.UUID
	ClaimedAt          *time.Time
	ConfirmedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TotalAmountCents is the amount the provider must have verified for the
// payment to confirm.
func (p *Payment) TotalAmountCents() int64 {
	return p.AmountCents + p.SupportAmountCents
}

func (p *Payment) IsManual() bool {
	return p.Provider == ProviderManual
}

func (p *Payment) IsClaimed() bool {
	return p.ClaimedBy != nil
}

// PayerID is the user a confirmed payment is attributed to: the owner if one
// exists, otherwise the claimant of an anonymous payment.
func (p *Payment) PayerID() *uuid.UUID {
	if p.UserID != nil {
		return p.UserID
	}
	return p.ClaimedBy
}
