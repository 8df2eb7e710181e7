package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"airdrop-backend/internal/apperr"
	"airdrop-backend/internal/blockchain"
	"airdrop-backend/internal/models"
)

const testMerchant = "MerchantWallet1111111111111111111111111111"

func TestCreateIntent(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db, testCatalog(t), &fakeVerifier{}, testMerchant, true, time.Second)

	result, err := service.CreateIntent("wallet-1", "gold")
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	if result.TxnID == "" {
		t.Fatal("expected a transaction id")
	}
	if result.AmountLamports != 750_000_000 {
		t.Errorf("expected gold price 750000000 lamports, got %d", result.AmountLamports)
	}
	if result.MerchantWallet != testMerchant {
		t.Errorf("expected merchant wallet in the intent, got %q", result.MerchantWallet)
	}

	var txn models.PaymentTransaction
	if err := db.Where("txn_id = ?", result.TxnID).First(&txn).Error; err != nil {
		t.Fatalf("intent not persisted: %v", err)
	}
	if txn.Status != models.TxnStatusPending {
		t.Errorf("expected pending status, got %q", txn.Status)
	}
	if txn.UserUID != "wallet-1" {
		t.Errorf("expected owner wallet-1, got %q", txn.UserUID)
	}

	// Intent creation lazily creates the account too.
	var user models.User
	if err := db.Where("uid = ?", "wallet-1").First(&user).Error; err != nil {
		t.Fatalf("user was not created: %v", err)
	}
}

func TestCreateIntentRejectsBadPlans(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db, testCatalog(t), &fakeVerifier{}, testMerchant, true, time.Second)

	_, err := service.CreateIntent("wallet-1", "diamond")
	if apperr.CodeOf(err) != "UNKNOWN_PLAN" {
		t.Errorf("expected UNKNOWN_PLAN, got %v", err)
	}

	_, err = service.CreateIntent("wallet-1", "free")
	if apperr.CodeOf(err) != "PLAN_NOT_PURCHASABLE" {
		t.Errorf("expected PLAN_NOT_PURCHASABLE, got %v", err)
	}
}

func TestConfirmPaymentManualApproval(t *testing.T) {
	db := setupTestDB(t)
	verifier := &fakeVerifier{result: confirmedPayment(750_000_000)}
	service := NewPaymentService(db, testCatalog(t), verifier, testMerchant, true, time.Second)

	intent, err := service.CreateIntent("wallet-1", "gold")
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}

	result, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1")
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if result.Status != models.TxnStatusPaid {
		t.Errorf("expected paid status, got %q", result.Status)
	}
	if result.PlanUpgraded {
		t.Error("manual approval mode must not upgrade the plan on confirm")
	}

	// The plan stays put until an admin approves.
	var user models.User
	db.Where("uid = ?", "wallet-1").First(&user)
	if user.PlanID != "free" {
		t.Errorf("plan changed without approval: %q", user.PlanID)
	}

	var txn models.PaymentTransaction
	db.Where("txn_id = ?", intent.TxnID).First(&txn)
	if txn.Status != models.TxnStatusPaid {
		t.Errorf("expected stored status paid, got %q", txn.Status)
	}
	if txn.ProviderRef == nil || *txn.ProviderRef != "sig-1" {
		t.Errorf("signature not recorded: %v", txn.ProviderRef)
	}
	if txn.ConfirmedAt == nil {
		t.Error("confirmed_at not stamped")
	}
}

func TestConfirmPaymentAutoUpgrade(t *testing.T) {
	db := setupTestDB(t)
	verifier := &fakeVerifier{result: confirmedPayment(750_000_000)}
	service := NewPaymentService(db, testCatalog(t), verifier, testMerchant, false, time.Second)

	intent, err := service.CreateIntent("wallet-1", "gold")
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}

	result, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1")
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if !result.PlanUpgraded {
		t.Fatal("auto mode must upgrade the plan on confirm")
	}

	var user models.User
	db.Where("uid = ?", "wallet-1").First(&user)
	if user.PlanID != "gold" {
		t.Errorf("expected gold plan, got %q", user.PlanID)
	}
	if user.MaxDailyClaims != 5 {
		t.Errorf("expected 5 daily claims, got %d", user.MaxDailyClaims)
	}
	if user.PlanUpgradedAt == nil {
		t.Error("plan_upgraded_at not stamped")
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	db := setupTestDB(t)
	verifier := &fakeVerifier{result: confirmedPayment(750_000_000)}
	service := NewPaymentService(db, testCatalog(t), verifier, testMerchant, true, time.Second)

	intent, _ := service.CreateIntent("wallet-1", "gold")
	if _, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1"); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}

	replay, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1")
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !replay.AlreadyProcessed {
		t.Error("replay must be flagged AlreadyProcessed")
	}
	if verifier.calls != 1 {
		t.Errorf("replay must not re-verify: verifier called %d times", verifier.calls)
	}
}

func TestConfirmPaymentOwnership(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db, testCatalog(t), &fakeVerifier{result: confirmedPayment(750_000_000)}, testMerchant, true, time.Second)

	intent, _ := service.CreateIntent("wallet-1", "gold")

	_, err := service.ConfirmPayment(context.Background(), "wallet-2", intent.TxnID, "sig-1")
	if apperr.CodeOf(err) != "NOT_TXN_OWNER" {
		t.Errorf("expected NOT_TXN_OWNER, got %v", err)
	}
	if apperr.KindOf(err) != apperr.PermissionDenied {
		t.Errorf("expected PermissionDenied kind, got %v", apperr.KindOf(err))
	}

	_, err = service.ConfirmPayment(context.Background(), "wallet-1", "missing", "sig-1")
	if apperr.CodeOf(err) != "TXN_NOT_FOUND" {
		t.Errorf("expected TXN_NOT_FOUND, got %v", err)
	}
}

func TestConfirmPaymentRejections(t *testing.T) {
	cases := []struct {
		name     string
		verdict  *blockchain.PaymentVerification
		wantCode string
	}{
		{"not found", &blockchain.PaymentVerification{Found: false}, "SIGNATURE_NOT_FOUND"},
		{"failed on chain", &blockchain.PaymentVerification{Found: true, HasError: true}, "TX_FAILED_ON_CHAIN"},
		{"unconfirmed", &blockchain.PaymentVerification{Found: true}, "TX_UNCONFIRMED"},
		{"underpaid", confirmedPayment(500_000_000), "AMOUNT_MISMATCH"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := setupTestDB(t)
			service := NewPaymentService(db, testCatalog(t), &fakeVerifier{result: tc.verdict}, testMerchant, true, time.Second)

			intent, _ := service.CreateIntent("wallet-1", "gold")
			_, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1")
			if apperr.CodeOf(err) != tc.wantCode {
				t.Errorf("expected %s, got %v", tc.wantCode, err)
			}

			// Rejections keep the intent pending and retryable.
			var txn models.PaymentTransaction
			db.Where("txn_id = ?", intent.TxnID).First(&txn)
			if txn.Status != models.TxnStatusPending {
				t.Errorf("rejection changed status to %q", txn.Status)
			}
		})
	}
}

func TestConfirmPaymentToleranceBand(t *testing.T) {
	// Gold costs 750_000_000; 99% of that is the floor.
	db := setupTestDB(t)
	verifier := &fakeVerifier{result: confirmedPayment(742_500_000)}
	service := NewPaymentService(db, testCatalog(t), verifier, testMerchant, true, time.Second)

	intent, _ := service.CreateIntent("wallet-1", "gold")
	if _, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1"); err != nil {
		t.Fatalf("payment at exactly 99%% must pass: %v", err)
	}

	db2 := setupTestDB(t)
	verifier2 := &fakeVerifier{result: confirmedPayment(742_499_999)}
	service2 := NewPaymentService(db2, testCatalog(t), verifier2, testMerchant, true, time.Second)

	intent2, _ := service2.CreateIntent("wallet-1", "gold")
	_, err := service2.ConfirmPayment(context.Background(), "wallet-1", intent2.TxnID, "sig-1")
	if apperr.CodeOf(err) != "AMOUNT_MISMATCH" {
		t.Errorf("payment below 99%% must fail, got %v", err)
	}
}

func TestConfirmPaymentVerifierError(t *testing.T) {
	db := setupTestDB(t)
	verifier := &fakeVerifier{err: errors.New("rpc timeout")}
	service := NewPaymentService(db, testCatalog(t), verifier, testMerchant, true, time.Second)

	intent, _ := service.CreateIntent("wallet-1", "gold")
	_, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1")
	if apperr.CodeOf(err) != "VERIFIER_ERROR" {
		t.Errorf("expected VERIFIER_ERROR, got %v", err)
	}

	// A transport failure leaves the intent pending for retry.
	var txn models.PaymentTransaction
	db.Where("txn_id = ?", intent.TxnID).First(&txn)
	if txn.Status != models.TxnStatusPending {
		t.Errorf("expected pending after verifier error, got %q", txn.Status)
	}
}

func TestReconcilerQueries(t *testing.T) {
	db := setupTestDB(t)
	verifier := &fakeVerifier{result: &blockchain.PaymentVerification{Found: true}}
	service := NewPaymentService(db, testCatalog(t), verifier, testMerchant, true, time.Second)

	intent, _ := service.CreateIntent("wallet-1", "gold")

	// An unconfirmed verdict records the attempted signature so the
	// reconciler can re-drive the confirmation later.
	if _, err := service.ConfirmPayment(context.Background(), "wallet-1", intent.TxnID, "sig-1"); err == nil {
		t.Fatal("expected rejection for unconfirmed payment")
	}

	retryable, err := service.ListRetryablePending(time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("ListRetryablePending failed: %v", err)
	}
	if len(retryable) != 1 {
		t.Fatalf("expected 1 retryable intent, got %d", len(retryable))
	}
	if retryable[0].ProviderRef == nil || *retryable[0].ProviderRef != "sig-1" {
		t.Errorf("attempted signature not recorded: %v", retryable[0].ProviderRef)
	}

	// A fresh intent with no recorded attempt is not retryable.
	if _, err := service.CreateIntent("wallet-1", "silver"); err != nil {
		t.Fatalf("second intent failed: %v", err)
	}
	retryable, _ = service.ListRetryablePending(time.Now().Add(time.Minute), 10)
	if len(retryable) != 1 {
		t.Errorf("intent without a signature attempt must not be retryable, got %d", len(retryable))
	}

	// Everything pending and old enough expires to failed.
	expired, err := service.ExpireStalePending(time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ExpireStalePending failed: %v", err)
	}
	if expired != 2 {
		t.Errorf("expected 2 expired intents, got %d", expired)
	}

	var count int64
	db.Model(&models.PaymentTransaction{}).Where("status = ?", models.TxnStatusFailed).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 failed transactions, got %d", count)
	}
}

func TestGetTransactionOwnership(t *testing.T) {
	db := setupTestDB(t)
	service := NewPaymentService(db, testCatalog(t), &fakeVerifier{}, testMerchant, true, time.Second)

	intent, _ := service.CreateIntent("wallet-1", "gold")

	txn, err := service.GetTransaction("wallet-1", intent.TxnID)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if txn.TxnID != intent.TxnID {
		t.Errorf("wrong transaction returned: %q", txn.TxnID)
	}

	if _, err := service.GetTransaction("wallet-2", intent.TxnID); apperr.CodeOf(err) != "NOT_TXN_OWNER" {
		t.Errorf("expected NOT_TXN_OWNER, got %v", err)
	}
}
