package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/wihngo?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.ManualExpiryMinutes)
	assert.Equal(t, 30, cfg.DepositPollIntervalS)
	assert.Equal(t, 100, cfg.DepositPollBatchSize)
	assert.Equal(t, 50, cfg.OrphanScanBatchSize)
	assert.True(t, cfg.GasSponsorshipEnabled)
}

func TestLoad_DepositPollKnobs(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/wihngo?sslmode=disable")
	t.Setenv("DEPOSIT_POLL_INTERVAL_S", "10")
	t.Setenv("DEPOSIT_POLL_BATCH_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.DepositPollIntervalS)
	assert.Equal(t, 25, cfg.DepositPollBatchSize)
}
