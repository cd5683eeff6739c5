// Package provider defines the payment-rail capability every variant must
// implement and the factory that resolves a variant at runtime. The closed
// set of variants covers the on-chain rail (solana), the anonymous deposit
// rail (manual) and the fiat rail (paypal).
package provider

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

// CreateIntentCommand carries everything a variant needs to produce
// provider-specific intent data. The payment row already exists when this is
// called, so PaymentID is always set.
type CreateIntentCommand struct {
	PaymentID   uuid.UUID
	UserID      *uuid.UUID
	Purpose     string
	AmountCents int64
	Currency    string
}

// IntentResult is the provider-specific half of a payment intent: a
// checkout/session reference for redirect rails, a destination address for
// on-chain rails.
type IntentResult struct {
	CheckoutRef        string
	DestinationAddress string
}

// VerificationResult reports what a provider could prove about a submitted
// reference. A zero VerifiedAmountCents on a valid result means the variant
// defers amount truth to a later amount-bearing event (manual rail).
type VerificationResult struct {
	Valid               bool
	SenderAddress       string
	VerifiedAmountCents int64
	SettledAt           *time.Time
	FailureReason       string
}

type Provider interface {
	CreateIntent(ctx context.Context, cmd CreateIntentCommand) (*IntentResult, error)
	Verify(ctx context.Context, paymentID uuid.UUID, providerRef string) (*VerificationResult, error)
}

// Factory resolves the provider for a variant. Unregistered variants fail
// fast with ErrProviderUnavailable instead of falling through to a default.
type Factory struct {
	providers map[domain.PaymentProvider]Provider
}

func NewFactory() *Factory {
	return &Factory{providers: make(map[domain.PaymentProvider]Provider)}
}

func (f *Factory) Register(variant domain.PaymentProvider, p Provider) {
	f.providers[variant] = p
}

func (f *Factory) Resolve(variant domain.PaymentProvider) (Provider, error) {
	p, ok := f.providers[variant]
	if !ok {
		return nil, domain.ErrProviderUnavailable
	}
	return p, nil
}
