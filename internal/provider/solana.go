package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fullstackragab/wihngo-payments/internal/chain"
)

type txVerifier interface {
	VerifyTransfer(ctx context.Context, signature string) (*chain.TransferProof, error)
}

// SolanaProvider verifies transfers into the platform treasury. Intent data
// is the treasury address plus the payment ID to embed as a transfer memo.
type SolanaProvider struct {
	verifier        txVerifier
	treasuryAddress string
}

func NewSolanaProvider(verifier txVerifier, treasuryAddress string) *SolanaProvider {
	return &SolanaProvider{verifier: verifier, treasuryAddress: treasuryAddress}
}

func (p *SolanaProvider) CreateIntent(ctx context.Context, cmd CreateIntentCommand) (*IntentResult, error) {
	return &IntentResult{
		CheckoutRef:        cmd.PaymentID.String(),
		DestinationAddress: p.treasuryAddress,
	}, nil
}

func (p *SolanaProvider) Verify(ctx context.Context, paymentID uuid.UUID, providerRef string) (*VerificationResult, error) {
	proof, err := p.verifier.VerifyTransfer(ctx, providerRef)
	if err != nil {
		return nil, fmt.Errorf("Verify: %w", err)
	}

	if !proof.Valid {
		return &VerificationResult{Valid: false, FailureReason: proof.FailureReason}, nil
	}

	return &VerificationResult{
		Valid:               true,
		SenderAddress:       proof.Sender,
		VerifiedAmountCents: int64(proof.AmountLamports),
		SettledAt:           proof.SettledAt,
	}, nil
}
