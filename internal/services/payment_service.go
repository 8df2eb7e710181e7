package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"airdrop-backend/internal/apperr"
	"airdrop-backend/internal/blockchain"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
)

// PaymentVerifier reports whether a payment signature is confirmed
// on-chain and how many lamports the merchant account actually received.
// Implemented by blockchain.SolanaClient; tests substitute fakes.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, signature string) (*blockchain.PaymentVerification, error)
}

// amountToleranceBps is the minimum observed payment as a fraction of the
// expected amount, in basis points. The band absorbs fee and rounding
// noise on simple transfers.
const amountToleranceBps = 9900

// PaymentService creates payment intents and correlates on-chain payments
// to them. When requireManualApproval is set (the hardened default), plan
// promotion is deferred to the admin approval gate; otherwise a confirmed
// payment promotes the plan immediately (legacy behavior).
type PaymentService struct {
	db                    *gorm.DB
	catalog               *config.PlanCatalog
	verifier              PaymentVerifier
	merchantWallet        string
	requireManualApproval bool
	verifyTimeout         time.Duration
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(db *gorm.DB, catalog *config.PlanCatalog, verifier PaymentVerifier,
	merchantWallet string, requireManualApproval bool, verifyTimeout time.Duration) *PaymentService {

	return &PaymentService{
		db:                    db,
		catalog:               catalog,
		verifier:              verifier,
		merchantWallet:        merchantWallet,
		requireManualApproval: requireManualApproval,
		verifyTimeout:         verifyTimeout,
	}
}

// IntentResult describes a freshly created payment intent. The amount is
// server-computed from the plan catalog; any client-supplied amount is
// ignored.
type IntentResult struct {
	TxnID          string `json:"txn_id"`
	PlanID         string `json:"plan_id"`
	AmountLamports int64  `json:"amount_lamports"`
	MerchantWallet string `json:"merchant_wallet"`
}

// ConfirmResult is the outcome of a payment confirmation attempt.
type ConfirmResult struct {
	Status           string `json:"status"`
	AlreadyProcessed bool   `json:"already_processed"`
	PlanUpgraded     bool   `json:"plan_upgraded"`
}

// CreateIntent records a pending payment intent for uid to buy planID.
// A single fresh insert needs no cross-row transaction beyond the lazy
// user creation it may trigger.
func (s *PaymentService) CreateIntent(uid, planID string) (*IntentResult, error) {
	plan, ok := s.catalog.PlanByID(planID)
	if !ok {
		return nil, apperr.New(apperr.InvalidArgument, "UNKNOWN_PLAN", "unknown plan %q", planID)
	}
	if plan.PriceLamports == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "PLAN_NOT_PURCHASABLE", "plan %q is not purchasable", planID)
	}

	txn := models.PaymentTransaction{
		TxnID:          uuid.NewString(),
		UserUID:        uid,
		PlanID:         plan.ID,
		Status:         models.TxnStatusPending,
		Provider:       "solana",
		AmountLamports: plan.PriceLamports,
		Currency:       "SOL",
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := ensureUser(tx, uid, s.catalog); err != nil {
			return err
		}
		return tx.Create(&txn).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Payment intent created: txn=%s user=%s plan=%s amount=%d lamports",
		txn.TxnID, uid, plan.ID, plan.PriceLamports)

	return &IntentResult{
		TxnID:          txn.TxnID,
		PlanID:         plan.ID,
		AmountLamports: plan.PriceLamports,
		MerchantWallet: s.merchantWallet,
	}, nil
}

// ConfirmPayment verifies signature on-chain and marks the intent paid.
// The verifier call happens before the database transaction so the
// critical section stays free of external I/O; only its result is fed in.
// Failures leave the intent pending, so the client can retry safely.
func (s *PaymentService) ConfirmPayment(ctx context.Context, uid, txnID, signature string) (*ConfirmResult, error) {
	if txnID == "" || signature == "" {
		return nil, apperr.New(apperr.InvalidArgument, "MISSING_ARGUMENT", "transaction id and signature are required")
	}

	var txn models.PaymentTransaction
	err := s.db.Where("txn_id = ?", txnID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.NotFound, "TXN_NOT_FOUND", "transaction %s not found", txnID)
	}
	if err != nil {
		return nil, err
	}

	if txn.UserUID != uid {
		return nil, apperr.New(apperr.PermissionDenied, "NOT_TXN_OWNER", "transaction belongs to another user")
	}

	// Idempotence: a paid transaction stays paid, no re-verification.
	if txn.Status == models.TxnStatusPaid {
		return &ConfirmResult{
			Status:           txn.Status,
			AlreadyProcessed: true,
			PlanUpgraded:     txn.PlanUpgraded,
		}, nil
	}
	if txn.Status != models.TxnStatusPending {
		return nil, apperr.New(apperr.FailedPrecondition, "TXN_NOT_PENDING",
			"transaction status is %q, expected pending", txn.Status)
	}

	vctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	verification, err := s.verifier.VerifyPayment(vctx, signature)
	if err != nil {
		// Verifier timeouts and transport errors keep the intent
		// pending; the idempotence check above makes retries safe.
		return nil, apperr.Wrap(err, apperr.Internal, "VERIFIER_ERROR", "payment verification failed")
	}

	if reason := rejectVerification(verification, txn.AmountLamports); reason != nil {
		// Remember the attempted signature so the reconciler can
		// re-drive payments that confirm later. Best effort, but a
		// failed write must not pass silently: the intent would never
		// surface in the retry listing.
		if err := s.db.Model(&models.PaymentTransaction{}).
			Where("txn_id = ? AND status = ?", txnID, models.TxnStatusPending).
			Update("provider_ref", signature).Error; err != nil {
			log.Printf("Failed to record signature attempt for txn %s: %v", txnID, err)
		}
		return nil, reason
	}

	now := time.Now()
	result := &ConfirmResult{Status: models.TxnStatusPaid}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Guarded transition: only a pending intent can become paid.
		res := tx.Model(&models.PaymentTransaction{}).
			Where("txn_id = ? AND status = ?", txnID, models.TxnStatusPending).
			Updates(map[string]interface{}{
				"status":       models.TxnStatusPaid,
				"provider_ref": signature,
				"confirmed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race against a concurrent confirm; re-read to tell
			// the idempotent case from a real precondition failure.
			var current models.PaymentTransaction
			if err := tx.Where("txn_id = ?", txnID).First(&current).Error; err != nil {
				return err
			}
			if current.Status == models.TxnStatusPaid {
				result.AlreadyProcessed = true
				result.PlanUpgraded = current.PlanUpgraded
				return nil
			}
			return apperr.New(apperr.FailedPrecondition, "TXN_NOT_PENDING",
				"transaction status is %q, expected pending", current.Status)
		}

		if !s.requireManualApproval {
			plan, ok := s.catalog.PlanByID(txn.PlanID)
			if !ok {
				return apperr.New(apperr.Internal, "UNKNOWN_PLAN", "transaction %s has unknown plan %q", txnID, txn.PlanID)
			}
			if err := applyPlanUpgrade(tx, txnID, txn.UserUID, plan, nil, "", "auto"); err != nil {
				return err
			}
			result.PlanUpgraded = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Payment confirmed: txn=%s user=%s signature=%s planUpgraded=%v",
		txnID, uid, signature, result.PlanUpgraded)
	return result, nil
}

// rejectVerification maps a verification outcome to a specific rejection,
// or nil when the payment passes all checks.
func rejectVerification(v *blockchain.PaymentVerification, expectedLamports int64) error {
	if !v.Found {
		return apperr.New(apperr.FailedPrecondition, "SIGNATURE_NOT_FOUND",
			"signature does not resolve to a known transaction")
	}
	if v.HasError {
		return apperr.New(apperr.FailedPrecondition, "TX_FAILED_ON_CHAIN",
			"transaction failed on-chain")
	}
	if !v.Confirmed {
		return apperr.New(apperr.FailedPrecondition, "TX_UNCONFIRMED",
			"transaction has not reached confirmed status")
	}

	minAccepted := expectedLamports * amountToleranceBps / 10_000
	if v.MerchantDeltaLamports < minAccepted {
		return apperr.New(apperr.FailedPrecondition, "AMOUNT_MISMATCH",
			"merchant received %d lamports, expected at least %d",
			v.MerchantDeltaLamports, minAccepted)
	}
	return nil
}

// applyPlanUpgrade flips PlanUpgraded on a paid transaction and promotes
// the user's plan from the catalog, all inside the caller's transaction.
// The guard (status=paid, not yet upgraded) makes re-application a no-op
// signalled via ALREADY_APPROVED; any partial failure aborts the caller.
func applyPlanUpgrade(tx *gorm.DB, txnID, userUID string, plan config.Plan,
	approvedBy *string, notes, method string) error {

	now := time.Now()

	updates := map[string]interface{}{
		"plan_upgraded":   true,
		"approval_method": method,
	}
	if approvedBy != nil {
		updates["approved_by"] = *approvedBy
	}
	if notes != "" {
		updates["approval_notes"] = notes
	}

	res := tx.Model(&models.PaymentTransaction{}).
		Where("txn_id = ? AND status = ? AND plan_upgraded = ?", txnID, models.TxnStatusPaid, false).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.AlreadyExists, "ALREADY_APPROVED",
			"transaction %s is already approved", txnID)
	}

	userRes := tx.Model(&models.User{}).
		Where("uid = ?", userUID).
		Updates(map[string]interface{}{
			"plan_id":          plan.ID,
			"max_daily_claims": plan.MaxDailyClaims,
			"plan_upgraded_at": now,
		})
	if userRes.Error != nil {
		return userRes.Error
	}
	if userRes.RowsAffected == 0 {
		return apperr.New(apperr.Internal, "USER_MISSING",
			"user %s missing during plan upgrade", userUID)
	}
	return nil
}

// GetUserTransactions returns the purchase history for uid, newest first.
func (s *PaymentService) GetUserTransactions(uid string, limit int) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	query := s.db.Where("user_uid = ?", uid).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ListRetryablePending returns pending intents with a recorded signature
// attempt older than cutoff. The reconciler re-drives ConfirmPayment for
// these; the operation is idempotent so re-driving is always safe.
func (s *PaymentService) ListRetryablePending(cutoff time.Time, limit int) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	if err := s.db.Where("status = ? AND provider_ref IS NOT NULL AND updated_at < ?",
		models.TxnStatusPending, cutoff).
		Order("updated_at ASC").Limit(limit).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ExpireStalePending marks pending intents older than cutoff as failed.
// failed is terminal; users create a fresh intent to try again.
func (s *PaymentService) ExpireStalePending(cutoff time.Time) (int64, error) {
	res := s.db.Model(&models.PaymentTransaction{}).
		Where("status = ? AND created_at < ?", models.TxnStatusPending, cutoff).
		Update("status", models.TxnStatusFailed)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("Expired %d stale pending payment intents", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// GetTransaction returns one transaction owned by uid.
func (s *PaymentService) GetTransaction(uid, txnID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := s.db.Where("txn_id = ?", txnID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.NotFound, "TXN_NOT_FOUND", "transaction %s not found", txnID)
	}
	if err != nil {
		return nil, err
	}
	if txn.UserUID != uid {
		return nil, apperr.New(apperr.PermissionDenied, "NOT_TXN_OWNER", "transaction belongs to another user")
	}
	return &txn, nil
}
