package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
	"github.com/fullstackragab/wihngo-payments/internal/repository"
	"github.com/fullstackragab/wihngo-payments/internal/testutil"
)

func TestPaymentRepository_ConfirmRefBackstop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()

	first := &domain.Payment{Purpose: "support", AmountCents: 2500, Provider: domain.ProviderSolana}
	second := &domain.Payment{Purpose: "support", AmountCents: 2500, Provider: domain.ProviderSolana}
	testutil.InsertPayment(t, db, first)
	testutil.InsertPayment(t, db, second)

	now := time.Now().UTC()
	require.NoError(t, repo.Confirm(ctx, first.ID, "5sig_backstop", now))

	// Same reference on a different payment trips the partial unique index.
	err := repo.Confirm(ctx, second.ID, "5sig_backstop", now)
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.Equal(t, domain.PaymentStatusPending, testutil.GetPaymentStatus(t, db, second.ID))

	// A confirmed payment cannot be confirmed again.
	err = repo.Confirm(ctx, first.ID, "5sig_other", now)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestPaymentRepository_ExpirePendingManual(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewPaymentRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := now.Add(-time.Minute)
	fresh := now.Add(time.Hour)
	staleAddr := "AddrStale"
	freshAddr := "AddrFresh"
	index1, index2 := int64(1), int64(2)

	expired := &domain.Payment{
		Purpose: "support", AmountCents: 2500, Provider: domain.ProviderManual,
		DerivationIndex: &index1, DepositAddress: &staleAddr, ExpiresAt: &stale,
	}
	live := &domain.Payment{
		Purpose: "support", AmountCents: 2500, Provider: domain.ProviderManual,
		DerivationIndex: &index2, DepositAddress: &freshAddr, ExpiresAt: &fresh,
	}
	testutil.InsertPayment(t, db, expired)
	testutil.InsertPayment(t, db, live)

	count, err := repo.ExpirePendingManual(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, domain.PaymentStatusFailed, testutil.GetPaymentStatus(t, db, expired.ID))
	assert.Equal(t, domain.PaymentStatusPending, testutil.GetPaymentStatus(t, db, live.ID))

	pending, err := repo.GetPendingManual(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, live.ID, pending[0].ID)
}

func TestCounterRepository_MonotonicIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewCounterRepository(db)
	ctx := context.Background()

	var indexes []int64
	for range 5 {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)

		index, err := repo.NextIndex(ctx, tx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		indexes = append(indexes, index)
	}

	for i := 1; i < len(indexes); i++ {
		assert.Equal(t, indexes[i-1]+1, indexes[i], "indexes allocate sequentially")
	}
}
