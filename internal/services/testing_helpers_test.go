package services

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"airdrop-backend/internal/blockchain"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
	"airdrop-backend/internal/utils"
)

// setupTestDB opens a named in-memory database so each test gets an
// isolated schema. cache=shared keeps the database alive across the
// multiple connections gorm opens.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Claim{},
		&models.ClaimKey{},
		&models.Referral{},
		&models.PaymentTransaction{},
		&models.AdminLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

// seedUser creates a user on the given plan with a fresh referral code.
func seedUser(t *testing.T, db *gorm.DB, uid, planID string, maxClaims int) *models.User {
	t.Helper()

	code, err := utils.GenerateReferralCode()
	if err != nil {
		t.Fatalf("failed to generate referral code: %v", err)
	}

	user := models.User{
		UID:            uid,
		PlanID:         planID,
		MaxDailyClaims: maxClaims,
		ReferralCode:   code,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", uid, err)
	}
	return &user
}

func testCatalog(t *testing.T) *config.PlanCatalog {
	t.Helper()
	catalog, err := config.DefaultPlanCatalog()
	if err != nil {
		t.Fatalf("failed to build plan catalog: %v", err)
	}
	return catalog
}

// fakeVerifier returns a canned verification result, standing in for the
// Solana RPC client.
type fakeVerifier struct {
	result *blockchain.PaymentVerification
	err    error
	calls  int
}

func (f *fakeVerifier) VerifyPayment(ctx context.Context, signature string) (*blockchain.PaymentVerification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func confirmedPayment(lamports int64) *blockchain.PaymentVerification {
	return &blockchain.PaymentVerification{
		Found:                 true,
		Confirmed:             true,
		MerchantDeltaLamports: lamports,
	}
}
