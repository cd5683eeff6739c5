package payment_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/monitor"
	"github.com/fullstackragab/wihngo-payments/internal/provider"
	"github.com/fullstackragab/wihngo-payments/internal/repository"
	"github.com/fullstackragab/wihngo-payments/internal/service/gas"
	"github.com/fullstackragab/wihngo-payments/internal/service/ledger"
	"github.com/fullstackragab/wihngo-payments/internal/service/payment"
	"github.com/fullstackragab/wihngo-payments/internal/testutil"
	"github.com/fullstackragab/wihngo-payments/internal/wallet"
)

// scriptedRail stands in for the on-chain provider: every verification
// succeeds with the configured amount.
type scriptedRail struct {
	amountCents int64
}

func (r *scriptedRail) CreateIntent(ctx context.Context, cmd provider.CreateIntentCommand) (*provider.IntentResult, error) {
	return &provider.IntentResult{
		CheckoutRef:        cmd.PaymentID.String(),
		DestinationAddress: "TreasuryAddr111",
	}, nil
}

func (r *scriptedRail) Verify(ctx context.Context, paymentID uuid.UUID, providerRef string) (*provider.VerificationResult, error) {
	return &provider.VerificationResult{
		Valid:               true,
		SenderAddress:       "SenderAddr111",
		VerifiedAmountCents: r.amountCents,
	}, nil
}

type fundedBalances struct{}

func (fundedBalances) GetNativeBalance(ctx context.Context, address string) (uint64, error) {
	return 1_000_000_000, nil
}

type stack struct {
	svc      *payment.Service
	gas      *gas.Service
	payments *repository.PaymentRepository
	rail     *scriptedRail
}

func setupStack(t *testing.T, db *sql.DB) *stack {
	t.Helper()

	deriver, err := wallet.NewDeriver(testutil.TestSeedHex)
	require.NoError(t, err)

	rail := &scriptedRail{}
	factory := provider.NewFactory()
	factory.Register(domain.ProviderSolana, rail)
	factory.Register(domain.ProviderManual, provider.NewManualProvider())

	paymentRepo := repository.NewPaymentRepository(db)
	ledgerSvc := ledger.NewService(repository.NewLedgerRepository(db), db)
	gasSvc := gas.NewService(gas.Config{
		Enabled:            true,
		MinBalanceLamports: 5_000,
		FlatFeeCents:       50,
		SponsorWallet:      "SponsorAddr111",
	}, fundedBalances{}, repository.NewSponsorshipRepository(db))

	svc := payment.NewService(
		paymentRepo,
		repository.NewSupportRepository(db),
		repository.NewCounterRepository(db),
		factory,
		deriver,
		ledgerSvc,
		gasSvc,
		db,
		time.Hour,
	)

	return &stack{svc: svc, gas: gasSvc, payments: paymentRepo, rail: rail}
}

func TestSubmit_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	supporter := uuid.New()
	beneficiary := uuid.New()

	intent, err := s.svc.CreateIntent(ctx, payment.CreateIntentRequest{
		UserID:             &supporter,
		BeneficiaryID:      &beneficiary,
		Purpose:            "support",
		AmountCents:        2500,
		SupportAmountCents: 500,
		Provider:           domain.ProviderSolana,
		Currency:           "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "TreasuryAddr111", intent.DestinationAddress)

	s.rail.amountCents = 3000
	p, err := s.svc.Submit(ctx, intent.PaymentID, "5sig_happy")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, p.Status)

	assert.True(t, testutil.SupportExists(t, db, p.ID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, db, p.ID))

	entries := testutil.GetLedgerEntries(t, db, p.ID)
	debit := testutil.FindEntry(entries, domain.EntryTypePaymentDebit)
	credit := testutil.FindEntry(entries, domain.EntryTypePaymentCredit)

	require.NotNil(t, debit)
	assert.Equal(t, supporter, debit.UserID)
	assert.Equal(t, int64(-2500), debit.Amount)
	assert.Equal(t, int64(-2500), debit.BalanceAfter)

	require.NotNil(t, credit)
	assert.Equal(t, beneficiary, credit.UserID)
	assert.Equal(t, int64(2500), credit.Amount)
	assert.Equal(t, int64(2500), credit.BalanceAfter)

	assert.Equal(t, int64(-2500), testutil.GetUserBalance(t, db, supporter))
	assert.Equal(t, int64(2500), testutil.GetUserBalance(t, db, beneficiary))
}

func TestSubmit_DuplicateProviderRef(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	supporter := uuid.New()
	beneficiary := uuid.New()

	create := func() uuid.UUID {
		intent, err := s.svc.CreateIntent(ctx, payment.CreateIntentRequest{
			UserID:        &supporter,
			BeneficiaryID: &beneficiary,
			Purpose:       "support",
			AmountCents:   2500,
			Provider:      domain.ProviderSolana,
			Currency:      "USD",
		})
		require.NoError(t, err)
		return intent.PaymentID
	}

	first := create()
	second := create()

	s.rail.amountCents = 2500
	_, err := s.svc.Submit(ctx, first, "5sig_dup")
	require.NoError(t, err)

	_, err = s.svc.Submit(ctx, second, "5sig_dup")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Equal(t, domain.PaymentStatusPending, testutil.GetPaymentStatus(t, db, second))

	// Resubmitting the confirmed payment is rejected too.
	_, err = s.svc.Submit(ctx, first, "5sig_other")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, db, first))
}

func TestSubmit_SponsoredFeeInDebit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	supporter := uuid.New()
	beneficiary := uuid.New()

	intent, err := s.svc.CreateIntent(ctx, payment.CreateIntentRequest{
		UserID:        &supporter,
		BeneficiaryID: &beneficiary,
		Purpose:       "support",
		AmountCents:   2500,
		Provider:      domain.ProviderSolana,
		Currency:      "USD",
	})
	require.NoError(t, err)

	_, err = s.gas.RecordSponsorship(ctx, intent.PaymentID, 5_000, false, nil)
	require.NoError(t, err)

	s.rail.amountCents = 2500
	p, err := s.svc.Submit(ctx, intent.PaymentID, "5sig_sponsored")
	require.NoError(t, err)

	entries := testutil.GetLedgerEntries(t, db, p.ID)
	debit := testutil.FindEntry(entries, domain.EntryTypePaymentDebit)
	credit := testutil.FindEntry(entries, domain.EntryTypePaymentCredit)

	require.NotNil(t, debit)
	assert.Equal(t, int64(-2550), debit.Amount, "debit carries the flat sponsorship fee")
	require.NotNil(t, credit)
	assert.Equal(t, int64(2500), credit.Amount, "credit never includes the fee")
}

func TestManualFlow_AmountMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	beneficiary := uuid.New()
	intent, err := s.svc.CreateManualIntent(ctx, payment.ManualIntentRequest{
		BeneficiaryID: &beneficiary,
		Purpose:       "support",
		AmountCents:   2500,
		BuyerContact:  "buyer@example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, intent.DepositAddress)

	_, err = s.svc.ConfirmDeposit(ctx, intent.PaymentID, "deposit:"+intent.DepositAddress, 2000)
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)
	assert.Equal(t, domain.PaymentStatusFailed, testutil.GetPaymentStatus(t, db, intent.PaymentID))

	// The correct amount arriving later cannot revive a failed payment.
	_, err = s.svc.ConfirmDeposit(ctx, intent.PaymentID, "deposit:"+intent.DepositAddress, 2500)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 0, testutil.CountLedgerEntries(t, db, intent.PaymentID))
}

func TestManualFlow_ClaimAppliesEffect(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	beneficiary := uuid.New()
	intent, err := s.svc.CreateManualIntent(ctx, payment.ManualIntentRequest{
		BeneficiaryID: &beneficiary,
		Purpose:       "support",
		AmountCents:   2500,
		BuyerContact:  "buyer@example.com",
	})
	require.NoError(t, err)

	p, err := s.svc.ConfirmDeposit(ctx, intent.PaymentID, "deposit:"+intent.DepositAddress, 2500)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusConfirmed, p.Status)

	// Anonymous and unclaimed: confirmation leaves no attribution.
	assert.False(t, testutil.SupportExists(t, db, p.ID))
	assert.Equal(t, 0, testutil.CountLedgerEntries(t, db, p.ID))

	view, err := s.svc.GetStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, view.ClaimRequired)

	claimant := uuid.New()
	claimed, err := s.svc.Claim(ctx, p.ID, claimant)
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedBy)
	assert.Equal(t, claimant, *claimed.ClaimedBy)

	assert.True(t, testutil.SupportExists(t, db, p.ID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, db, p.ID))
	assert.Equal(t, int64(-2500), testutil.GetUserBalance(t, db, claimant))
	assert.Equal(t, int64(2500), testutil.GetUserBalance(t, db, beneficiary))
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	beneficiary := uuid.New()
	intent, err := s.svc.CreateManualIntent(ctx, payment.ManualIntentRequest{
		BeneficiaryID: &beneficiary,
		Purpose:       "support",
		AmountCents:   2500,
		BuyerContact:  "buyer@example.com",
	})
	require.NoError(t, err)

	_, err = s.svc.ConfirmDeposit(ctx, intent.PaymentID, "deposit:"+intent.DepositAddress, 2500)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Claim(ctx, intent.PaymentID, uuid.New())
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
			conflicts++
		}
	}

	assert.Equal(t, 1, successes, "exactly one claim wins")
	assert.Equal(t, 1, conflicts)
	assert.True(t, testutil.SupportExists(t, db, intent.PaymentID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, db, intent.PaymentID))
}

func TestRecoverOrphans(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	supporter := uuid.New()
	beneficiary := uuid.New()
	ref := "5sig_orphan"
	confirmedAt := time.Now().UTC()

	orphan := &domain.Payment{
		UserID:        &supporter,
		BeneficiaryID: &beneficiary,
		Purpose:       "support",
		AmountCents:   2500,
		Provider:      domain.ProviderSolana,
		ProviderRef:   &ref,
		Status:        domain.PaymentStatusConfirmed,
		ConfirmedAt:   &confirmedAt,
	}
	testutil.InsertPayment(t, db, orphan)

	recovered, err := s.svc.RecoverOrphans(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	assert.True(t, testutil.SupportExists(t, db, orphan.ID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, db, orphan.ID))

	// A second sweep finds nothing and writes nothing.
	recovered, err = s.svc.RecoverOrphans(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, recovered)
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, db, orphan.ID))
}

func TestDepositMonitor_PollConfirms(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	beneficiary := uuid.New()
	intent, err := s.svc.CreateManualIntent(ctx, payment.ManualIntentRequest{
		BeneficiaryID: &beneficiary,
		Purpose:       "support",
		AmountCents:   2500,
		BuyerContact:  "buyer@example.com",
	})
	require.NoError(t, err)

	balances := addressBalances{intent.DepositAddress: 2500}
	m := monitor.NewDepositMonitor(s.payments, balances, s.svc, 100)

	require.NoError(t, m.Poll(ctx))
	assert.Equal(t, domain.PaymentStatusConfirmed, testutil.GetPaymentStatus(t, db, intent.PaymentID))

	p, err := s.payments.GetByID(ctx, intent.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, p.ProviderRef)
	assert.Equal(t, "deposit:"+intent.DepositAddress, *p.ProviderRef)
}

func TestDepositMonitor_PartialDepositLeavesPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db)
	ctx := context.Background()

	beneficiary := uuid.New()
	intent, err := s.svc.CreateManualIntent(ctx, payment.ManualIntentRequest{
		BeneficiaryID: &beneficiary,
		Purpose:       "support",
		AmountCents:   2500,
		BuyerContact:  "buyer@example.com",
	})
	require.NoError(t, err)

	balances := addressBalances{intent.DepositAddress: 999}
	m := monitor.NewDepositMonitor(s.payments, balances, s.svc, 100)

	// The first installment must not fail the payment.
	require.NoError(t, m.Poll(ctx))
	assert.Equal(t, domain.PaymentStatusPending, testutil.GetPaymentStatus(t, db, intent.PaymentID))

	// The remainder lands inside the window and the next poll confirms.
	balances[intent.DepositAddress] = 2500
	require.NoError(t, m.Poll(ctx))
	assert.Equal(t, domain.PaymentStatusConfirmed, testutil.GetPaymentStatus(t, db, intent.PaymentID))
}

type addressBalances map[string]uint64

func (b addressBalances) GetNativeBalance(ctx context.Context, address string) (uint64, error) {
	return b[address], nil
}
