package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fullstackragab/wihngo-payments/internal/paypal"
)

type orderClient interface {
	CreateOrder(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
}

// PayPalProvider is the fiat rail. Intents map to checkout orders; the
// provider ref submitted later is the order ID, verified by checking the
// order completed with a matching captured amount.
type PayPalProvider struct {
	client orderClient
}

func NewPayPalProvider(client orderClient) *PayPalProvider {
	return &PayPalProvider{client: client}
}

func (p *PayPalProvider) CreateIntent(ctx context.Context, cmd CreateIntentCommand) (*IntentResult, error) {
	amount := decimal.New(cmd.AmountCents, -2)
	order, err := p.client.CreateOrder(ctx, cmd.PaymentID.String(), amount, cmd.Currency)
	if err != nil {
		return nil, fmt.Errorf("CreateIntent: %w", err)
	}
	return &IntentResult{CheckoutRef: order.ID}, nil
}

func (p *PayPalProvider) Verify(ctx context.Context, paymentID uuid.UUID, providerRef string) (*VerificationResult, error) {
	order, err := p.client.GetOrder(ctx, providerRef)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	if order.Status != "COMPLETED" {
		return &VerificationResult{
			Valid:         false,
			FailureReason: fmt.Sprintf("order status %s", order.Status),
		}, nil
	}

	return &VerificationResult{
		Valid:               true,
		SenderAddress:       order.PayerID,
		VerifiedAmountCents: order.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		SettledAt:           order.UpdatedAt,
	}, nil
}
