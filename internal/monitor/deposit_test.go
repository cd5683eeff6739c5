package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

type stubPayments struct {
	pending    []domain.Payment
	pendingErr error
	expired    int64
}

func (s *stubPayments) GetPendingManual(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error) {
	return s.pending, s.pendingErr
}

func (s *stubPayments) ExpirePendingManual(ctx context.Context, now time.Time) (int64, error) {
	return s.expired, nil
}

type stubBalances struct {
	byAddress map[string]uint64
	errFor    map[string]error
}

func (s *stubBalances) GetNativeBalance(ctx context.Context, address string) (uint64, error) {
	if err := s.errFor[address]; err != nil {
		return 0, err
	}
	return s.byAddress[address], nil
}

type confirmCall struct {
	paymentID   uuid.UUID
	providerRef string
	amountCents int64
}

type recordingConfirmer struct {
	calls []confirmCall
	err   error
}

func (r *recordingConfirmer) ConfirmDeposit(ctx context.Context, paymentID uuid.UUID, providerRef string, amountCents int64) (*domain.Payment, error) {
	r.calls = append(r.calls, confirmCall{paymentID, providerRef, amountCents})
	return nil, r.err
}

func manualPending(address string) domain.Payment {
	return domain.Payment{
		ID:             uuid.New(),
		Purpose:        "support",
		AmountCents:    2500,
		Provider:       domain.ProviderManual,
		Status:         domain.PaymentStatusPending,
		DepositAddress: &address,
	}
}

func TestPoll_ConfirmsFundedAddresses(t *testing.T) {
	funded := manualPending("AddrFunded")
	empty := manualPending("AddrEmpty")
	unreachable := manualPending("AddrDown")

	payments := &stubPayments{pending: []domain.Payment{funded, empty, unreachable}}
	balances := &stubBalances{
		byAddress: map[string]uint64{"AddrFunded": 2500},
		errFor:    map[string]error{"AddrDown": errors.New("rpc timeout")},
	}
	confirmer := &recordingConfirmer{}

	m := NewDepositMonitor(payments, balances, confirmer, 100)
	require.NoError(t, m.Poll(context.Background()))

	require.Len(t, confirmer.calls, 1)
	call := confirmer.calls[0]
	assert.Equal(t, funded.ID, call.paymentID)
	assert.Equal(t, "deposit:AddrFunded", call.providerRef)
	assert.Equal(t, int64(2500), call.amountCents)
}

func TestPoll_PartialDepositStaysPending(t *testing.T) {
	// A buyer may fund the address in several transfers; confirmation must
	// wait until the balance covers the total instead of failing the payment
	// on the first installment.
	partial := manualPending("AddrPartial")

	payments := &stubPayments{pending: []domain.Payment{partial}}
	balances := &stubBalances{byAddress: map[string]uint64{"AddrPartial": 999}}
	confirmer := &recordingConfirmer{}

	m := NewDepositMonitor(payments, balances, confirmer, 100)
	require.NoError(t, m.Poll(context.Background()))
	assert.Empty(t, confirmer.calls)

	// The remainder arrives and the next poll confirms.
	balances.byAddress["AddrPartial"] = 2500
	require.NoError(t, m.Poll(context.Background()))
	require.Len(t, confirmer.calls, 1)
	assert.Equal(t, int64(2500), confirmer.calls[0].amountCents)
}

func TestPoll_ConfirmationRejectionDoesNotAbort(t *testing.T) {
	first := manualPending("Addr1")
	second := manualPending("Addr2")

	payments := &stubPayments{pending: []domain.Payment{first, second}}
	balances := &stubBalances{byAddress: map[string]uint64{"Addr1": 3000, "Addr2": 2500}}
	confirmer := &recordingConfirmer{err: domain.ErrAmountMismatch}

	m := NewDepositMonitor(payments, balances, confirmer, 100)
	require.NoError(t, m.Poll(context.Background()))

	// Both addresses were attempted despite the first rejection.
	assert.Len(t, confirmer.calls, 2)
}

func TestPoll_SourceError(t *testing.T) {
	payments := &stubPayments{pendingErr: errors.New("db gone")}
	m := NewDepositMonitor(payments, &stubBalances{}, &recordingConfirmer{}, 100)

	assert.Error(t, m.Poll(context.Background()))
}

func TestExpireStale(t *testing.T) {
	payments := &stubPayments{expired: 3}
	m := NewDepositMonitor(payments, &stubBalances{}, &recordingConfirmer{}, 100)

	assert.NoError(t, m.ExpireStale(context.Background()))
}
