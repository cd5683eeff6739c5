package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/fullstackragab/wihngo-payments/internal/domain"
)

const (
	seedSize = 32

	// Namespace bound into the PRF input so keys derived here can never
	// collide with any other derivation scheme sharing the seed.
	derivationNamespace = "wihngo/manual-deposit/v1"
)

// Deriver produces one deterministic, never-reused Solana keypair per
// derivation index. Private material is HMAC-SHA512(seed, namespace||index)
// truncated to the ed25519 seed size; nothing beyond the master seed is
// persisted.
type Deriver struct {
	seed []byte
}

// NewDeriver accepts a hex-encoded 32-byte master seed. An empty string
// yields an unconfigured deriver; all derivation calls then fail with
// domain.ErrNotConfigured.
func NewDeriver(seedHex string) (*Deriver, error) {
	if seedHex == "" {
		return &Deriver{}, nil
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, fmt.Errorf("NewDeriver: decode seed: %w", err)
	}
	if len(seed) != seedSize {
		return nil, fmt.Errorf("NewDeriver: seed must be %d bytes, got %d", seedSize, len(seed))
	}

	return &Deriver{seed: seed}, nil
}

func (d *Deriver) IsConfigured() bool {
	return len(d.seed) == seedSize
}

// DeriveAddress returns the base58 deposit address for an index. The same
// index always yields the same address.
func (d *Deriver) DeriveAddress(index int64) (string, error) {
	_, address, err := d.derive(index)
	if err != nil {
		return "", fmt.Errorf("DeriveAddress: %w", err)
	}
	return address, nil
}

// DeriveKeypair returns the address and the signing key for an index. Used
// only when sweeping a deposit address; the key never touches storage.
func (d *Deriver) DeriveKeypair(index int64) (string, solana.PrivateKey, error) {
	key, address, err := d.derive(index)
	if err != nil {
		return "", nil, fmt.Errorf("DeriveKeypair: %w", err)
	}
	return address, key, nil
}

func (d *Deriver) derive(index int64) (solana.PrivateKey, string, error) {
	if !d.IsConfigured() {
		return nil, "", domain.ErrNotConfigured
	}

	mac := hmac.New(sha512.New, d.seed)
	mac.Write([]byte(derivationNamespace))
	mac.Write([]byte{':'})

	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(index))
	mac.Write(idx[:])

	digest := mac.Sum(nil)
	key := ed25519.NewKeyFromSeed(digest[:ed25519.SeedSize])

	pub := key.Public().(ed25519.PublicKey)
	address := solana.PublicKeyFromBytes(pub).String()

	return solana.PrivateKey(key), address, nil
}
