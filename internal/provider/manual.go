package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

// ManualProvider is the anonymous deposit rail. Intent creation is owned by
// the orchestrator, which derives the deposit address itself; calling
// CreateIntent here is a programming error and fails loudly. Verification is
// structural only: the deposit monitor supplies the true amount later, so
// Verify reports valid with a zero amount.
type ManualProvider struct{}

func NewManualProvider() *ManualProvider {
	return &ManualProvider{}
}

func (p *ManualProvider) CreateIntent(ctx context.Context, cmd CreateIntentCommand) (*IntentResult, error) {
	return nil, fmt.Errorf("CreateIntent: manual rail intents are orchestrator-owned: %w", domain.ErrUnsupportedOperation)
}

func (p *ManualProvider) Verify(ctx context.Context, paymentID uuid.UUID, providerRef string) (*VerificationResult, error) {
	return &VerificationResult{
		Valid:               true,
		VerifiedAmountCents: 0,
	}, nil
}
