package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransferProof is what an on-chain transaction signature proves: whether a
// finalized transfer to the treasury happened, who sent it, and how much
// arrived.
type TransferProof struct {
	Valid          bool
	Sender         string
	AmountLamports uint64
	SettledAt      *time.Time
	FailureReason  string
}

// Client reads the Solana chain through a single RPC endpoint. It covers the
// two collaborator contracts the core needs: transfer verification and native
// balance reads.
type Client struct {
	rpc      *rpc.Client
	treasury solana.PublicKey
}

func NewClient(rpcURL, treasuryAddress string) (*Client, error) {
	treasury, err := solana.PublicKeyFromBase58(treasuryAddress)
	if err != nil {
		return nil, fmt.Errorf("NewClient: treasury address: %w", err)
	}

	return &Client{
		rpc:      rpc.New(rpcURL),
		treasury: treasury,
	}, nil
}

// VerifyTransfer resolves a transaction signature to a finalized lamport
// transfer into the treasury. The amount is the treasury's post-minus-pre
// balance delta, so multi-instruction transactions are measured by net
// effect.
func (c *Client) VerifyTransfer(ctx context.Context, signature string) (*TransferProof, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return &TransferProof{Valid: false, FailureReason: "malformed signature"}, nil
	}

	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, fmt.Errorf("VerifyTransfer: get transaction: %w", err)
	}
	if out == nil || out.Meta == nil {
		return &TransferProof{Valid: false, FailureReason: "transaction not found"}, nil
	}
	if out.Meta.Err != nil {
		return &TransferProof{Valid: false, FailureReason: "transaction failed on chain"}, nil
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("VerifyTransfer: decode transaction: %w", err)
	}
	if len(tx.Message.AccountKeys) == 0 {
		return &TransferProof{Valid: false, FailureReason: "transaction has no account keys"}, nil
	}

	treasuryIdx := -1
	for i, key := range tx.Message.AccountKeys {
		if key.Equals(c.treasury) {
			treasuryIdx = i
			break
		}
	}
	if treasuryIdx < 0 {
		return &TransferProof{Valid: false, FailureReason: "treasury not involved in transaction"}, nil
	}
	if treasuryIdx >= len(out.Meta.PreBalances) || treasuryIdx >= len(out.Meta.PostBalances) {
		return &TransferProof{Valid: false, FailureReason: "balance metadata incomplete"}, nil
	}

	pre := out.Meta.PreBalances[treasuryIdx]
	post := out.Meta.PostBalances[treasuryIdx]
	if post <= pre {
		return &TransferProof{Valid: false, FailureReason: "no lamports transferred to treasury"}, nil
	}

	proof := &TransferProof{
		Valid:          true,
		Sender:         tx.Message.AccountKeys[0].String(),
		AmountLamports: post - pre,
	}
	if out.BlockTime != nil {
		t := out.BlockTime.Time()
		proof.SettledAt = &t
	}
	return proof, nil
}

// GetNativeBalance reads an account's lamport balance at finalized
// commitment.
func (c *Client) GetNativeBalance(ctx context.Context, address string) (uint64, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("GetNativeBalance: address: %w", err)
	}

	res, err := c.rpc.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("GetNativeBalance: %w", err)
	}
	return res.Value, nil
}
