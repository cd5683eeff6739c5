package gas

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

type stubBalances struct {
	balance uint64
	err     error
}

func (s *stubBalances) GetNativeBalance(ctx context.Context, address string) (uint64, error) {
	return s.balance, s.err
}

type memSponsorships struct {
	byPayment map[uuid.UUID]*domain.GasSponsorship
}

func newMemSponsorships() *memSponsorships {
	return &memSponsorships{byPayment: make(map[uuid.UUID]*domain.GasSponsorship)}
}

func (m *memSponsorships) Create(ctx context.Context, s *domain.GasSponsorship) error {
	if _, ok := m.byPayment[s.PaymentID]; ok {
		return domain.ErrSponsorshipExists
	}
	m.byPayment[s.PaymentID] = s
	return nil
}

func (m *memSponsorships) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*domain.GasSponsorship, error) {
	s, ok := m.byPayment[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func TestShouldSponsor(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		balance  uint64
		readErr  error
		expected bool
	}{
		{"disabled", false, 0, nil, false},
		{"below threshold", true, 4_000, nil, true},
		{"at threshold", true, 5_000, nil, false},
		{"above threshold", true, 1_000_000, nil, false},
		{"balance read fails open", true, 0, errors.New("rpc down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Config{
				Enabled:            tt.enabled,
				MinBalanceLamports: 5_000,
			}, &stubBalances{balance: tt.balance, err: tt.readErr}, newMemSponsorships())

			got := svc.ShouldSponsor(context.Background(), "SenderAddr111")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRecordSponsorship(t *testing.T) {
	sponsorships := newMemSponsorships()
	svc := NewService(Config{
		Enabled:      true,
		FlatFeeCents: 50,
	}, &stubBalances{}, sponsorships)
	ctx := context.Background()
	paymentID := uuid.New()

	record, err := svc.RecordSponsorship(ctx, paymentID, 5_000, false, nil)
	require.NoError(t, err)
	assert.Equal(t, paymentID, record.PaymentID)
	assert.Equal(t, uint64(5_000), record.SponsoredLamports)
	assert.Equal(t, int64(50), record.FeeCents)

	_, err = svc.RecordSponsorship(ctx, paymentID, 5_000, false, nil)
	assert.ErrorIs(t, err, domain.ErrSponsorshipExists)
}

func TestFeeForPayment(t *testing.T) {
	sponsorships := newMemSponsorships()
	svc := NewService(Config{FlatFeeCents: 50}, &stubBalances{}, sponsorships)
	ctx := context.Background()

	fee, err := svc.FeeForPayment(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, fee, "no sponsorship means no fee")

	paymentID := uuid.New()
	_, err = svc.RecordSponsorship(ctx, paymentID, 10_000, true, nil)
	require.NoError(t, err)

	fee, err = svc.FeeForPayment(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), fee)
}
