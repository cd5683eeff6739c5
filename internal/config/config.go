package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`

	SolanaRPCURL    string `env:"SOLANA_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`
	TreasuryAddress string `env:"TREASURY_ADDRESS"`

	// Hex-encoded 32-byte master seed for manual-rail address derivation.
	// Manual payments are disabled when empty.
	MasterSeedHex       string `env:"MASTER_SEED_HEX"`
	ManualExpiryMinutes int    `env:"MANUAL_EXPIRY_MINUTES" envDefault:"60"`

	GasSponsorshipEnabled bool   `env:"GAS_SPONSORSHIP_ENABLED" envDefault:"true"`
	GasMinBalanceLamports uint64 `env:"GAS_MIN_BALANCE_LAMPORTS" envDefault:"10000"`
	GasFlatFeeCents       int64  `env:"GAS_FLAT_FEE_CENTS" envDefault:"25"`
	GasSponsorWallet      string `env:"GAS_SPONSOR_WALLET"`

	PayPalBaseURL      string `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.paypal.com"`
	PayPalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`

	OrphanScanIntervalS  int `env:"ORPHAN_SCAN_INTERVAL_S" envDefault:"300"`
	OrphanScanBatchSize  int `env:"ORPHAN_SCAN_BATCH_SIZE" envDefault:"50"`
	DepositPollIntervalS int `env:"DEPOSIT_POLL_INTERVAL_S" envDefault:"30"`
	DepositPollBatchSize int `env:"DEPOSIT_POLL_BATCH_SIZE" envDefault:"100"`
	ExpirySweepIntervalS int `env:"EXPIRY_SWEEP_INTERVAL_S" envDefault:"60"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
