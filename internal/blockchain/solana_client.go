package blockchain

import (
	"context"
	"fmt"
	"log"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// PaymentVerification is the result of checking one payment signature
// against the merchant account. MerchantDeltaLamports is the observed
// balance change of the merchant account in that transaction.
type PaymentVerification struct {
	Found                 bool
	HasError              bool
	Confirmed             bool
	MerchantDeltaLamports int64
}

// SolanaClient verifies SOL payments to the merchant wallet
type SolanaClient struct {
	rpcClient      *rpc.Client
	network        string
	merchantWallet solana.PublicKey
}

// NewSolanaClient creates a new Solana client for the given network
func NewSolanaClient(network, merchantWallet string) (*SolanaClient, error) {
	var rpcURL string
	switch network {
	case "mainnet-beta":
		rpcURL = "https://api.mainnet-beta.solana.com"
	case "devnet":
		rpcURL = "https://api.devnet.solana.com"
	case "testnet":
		rpcURL = "https://api.testnet.solana.com"
	default:
		rpcURL = "https://api.devnet.solana.com"
	}

	merchant, err := solana.PublicKeyFromBase58(merchantWallet)
	if err != nil {
		return nil, fmt.Errorf("invalid merchant wallet address: %w", err)
	}

	return &SolanaClient{
		rpcClient:      rpc.New(rpcURL),
		network:        network,
		merchantWallet: merchant,
	}, nil
}

// MerchantWallet returns the merchant wallet address payments must go to
func (s *SolanaClient) MerchantWallet() string {
	return s.merchantWallet.String()
}

// ValidateWalletAddress validates a Solana wallet address format
func (s *SolanaClient) ValidateWalletAddress(address string) bool {
	_, err := solana.PublicKeyFromBase58(address)
	return err == nil
}

// VerifyPayment checks a payment signature: whether it exists on-chain,
// executed without error, reached confirmed/finalized commitment, and how
// many lamports the merchant account actually gained. It never mutates
// anything; callers feed the result into their own transaction.
func (s *SolanaClient) VerifyPayment(ctx context.Context, signature string) (*PaymentVerification, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature format: %w", err)
	}

	// 1. Check status first — cheap, and resolves found/error/confirmed
	status, err := s.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}

	if len(status.Value) == 0 || status.Value[0] == nil {
		return &PaymentVerification{Found: false}, nil
	}

	if status.Value[0].Err != nil {
		log.Printf("Payment %s failed on-chain: %v", signature, status.Value[0].Err)
		return &PaymentVerification{Found: true, HasError: true}, nil
	}

	confStatus := status.Value[0].ConfirmationStatus
	if confStatus != rpc.ConfirmationStatusConfirmed && confStatus != rpc.ConfirmationStatusFinalized {
		return &PaymentVerification{Found: true, Confirmed: false}, nil
	}

	// 2. Fetch the full transaction to measure the merchant balance delta
	tx, err := s.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction details: %w", err)
	}

	result := &PaymentVerification{Found: true, Confirmed: true}

	transaction, err := tx.Transaction.GetTransaction()
	if err != nil {
		log.Printf("Failed to decode transaction %s: %v", signature, err)
		return result, nil
	}

	// The merchant delta comes from Meta pre/post balances at the
	// merchant's account index, which is robust for simple transfers
	// regardless of instruction layout.
	for i, key := range transaction.Message.AccountKeys {
		if !key.Equals(s.merchantWallet) {
			continue
		}
		if tx.Meta == nil || len(tx.Meta.PreBalances) <= i || len(tx.Meta.PostBalances) <= i {
			break
		}
		result.MerchantDeltaLamports = int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
		break
	}

	return result, nil
}
