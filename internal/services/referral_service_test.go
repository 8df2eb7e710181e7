package services

import (
	"testing"

	"airdrop-backend/internal/apperr"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
)

func TestRedeemPaysBothSides(t *testing.T) {
	db := setupTestDB(t)
	catalog := testCatalog(t)
	service := NewReferralService(db, catalog, config.ReferralConfig{ReferrerBonus: 20, RefereeBonus: 10})

	referrer := seedUser(t, db, "referrer", "free", 1)

	result, err := service.Redeem(referrer.ReferralCode, "referred")
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if result.BonusReceived != 10 {
		t.Errorf("expected referee bonus 10, got %d", result.BonusReceived)
	}
	if result.ReferrerBonus != 20 {
		t.Errorf("expected referrer bonus 20, got %d", result.ReferrerBonus)
	}
	if result.ReferrerUID != "referrer" {
		t.Errorf("expected referrer uid, got %q", result.ReferrerUID)
	}

	var ref models.User
	db.Where("uid = ?", "referrer").First(&ref)
	if ref.Balance != 20 {
		t.Errorf("referrer balance: expected 20, got %d", ref.Balance)
	}
	if ref.TotalReferred != 1 {
		t.Errorf("referrer total referred: expected 1, got %d", ref.TotalReferred)
	}
	if ref.TotalReferralEarned != 20 {
		t.Errorf("referrer total earned: expected 20, got %d", ref.TotalReferralEarned)
	}

	var red models.User
	db.Where("uid = ?", "referred").First(&red)
	if red.Balance != 10 {
		t.Errorf("referred balance: expected 10, got %d", red.Balance)
	}
	if red.ReferredBy == nil || *red.ReferredBy != referrer.ReferralCode {
		t.Errorf("referred_by not recorded: %v", red.ReferredBy)
	}

	var count int64
	db.Model(&models.Referral{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 referral record, got %d", count)
	}
}

func TestRedeemOnlyOnce(t *testing.T) {
	db := setupTestDB(t)
	catalog := testCatalog(t)
	service := NewReferralService(db, catalog, config.ReferralConfig{ReferrerBonus: 20, RefereeBonus: 10})

	first := seedUser(t, db, "referrer-1", "free", 1)
	second := seedUser(t, db, "referrer-2", "free", 1)

	if _, err := service.Redeem(first.ReferralCode, "referred"); err != nil {
		t.Fatalf("first redeem failed: %v", err)
	}

	// Same code again.
	_, err := service.Redeem(first.ReferralCode, "referred")
	if apperr.CodeOf(err) != "ALREADY_REDEEMED" {
		t.Errorf("same code twice: expected ALREADY_REDEEMED, got %v", err)
	}

	// A different code must be rejected too; the link is once per user,
	// not once per code.
	_, err = service.Redeem(second.ReferralCode, "referred")
	if apperr.CodeOf(err) != "ALREADY_REDEEMED" {
		t.Errorf("different code: expected ALREADY_REDEEMED, got %v", err)
	}

	var red models.User
	db.Where("uid = ?", "referred").First(&red)
	if red.Balance != 10 {
		t.Errorf("balance changed on rejected redeems: expected 10, got %d", red.Balance)
	}

	var ref models.User
	db.Where("uid = ?", "referrer-1").First(&ref)
	if ref.TotalReferred != 1 {
		t.Errorf("referrer credited more than once: %d", ref.TotalReferred)
	}
}

func TestRedeemSelfReferral(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, testCatalog(t), config.ReferralConfig{ReferrerBonus: 20, RefereeBonus: 10})

	user := seedUser(t, db, "wallet-1", "free", 1)

	_, err := service.Redeem(user.ReferralCode, "wallet-1")
	if apperr.CodeOf(err) != "SELF_REFERRAL" {
		t.Errorf("expected SELF_REFERRAL, got %v", err)
	}

	var u models.User
	db.Where("uid = ?", "wallet-1").First(&u)
	if u.Balance != 0 {
		t.Errorf("self referral changed balance: %d", u.Balance)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, testCatalog(t), config.ReferralConfig{ReferrerBonus: 20, RefereeBonus: 10})

	_, err := service.Redeem("ZZZZZZ", "wallet-1")
	if apperr.CodeOf(err) != "CODE_NOT_FOUND" {
		t.Errorf("expected CODE_NOT_FOUND, got %v", err)
	}
	if apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("expected NotFound kind, got %v", apperr.KindOf(err))
	}

	_, err = service.Redeem("short", "wallet-1")
	if apperr.CodeOf(err) != "MALFORMED_CODE" {
		t.Errorf("expected MALFORMED_CODE, got %v", err)
	}
}

func TestRedeemNormalizesCode(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, testCatalog(t), config.ReferralConfig{ReferrerBonus: 20, RefereeBonus: 10})

	referrer := seedUser(t, db, "referrer", "free", 1)

	padded := "  " + referrer.ReferralCode + " "
	result, err := service.Redeem(padded, "referred")
	if err != nil {
		t.Fatalf("redeem with padded code failed: %v", err)
	}
	if result.ReferrerUID != "referrer" {
		t.Errorf("unexpected referrer: %q", result.ReferrerUID)
	}
}

func TestValidateCode(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, testCatalog(t), config.ReferralConfig{ReferrerBonus: 20, RefereeBonus: 10})

	referrer := seedUser(t, db, "referrer", "free", 1)

	result, err := service.ValidateCode(referrer.ReferralCode, "someone-else")
	if err != nil {
		t.Fatalf("ValidateCode failed: %v", err)
	}
	if !result.Valid || result.ReferrerUID != "referrer" {
		t.Errorf("expected valid result, got %+v", result)
	}

	result, _ = service.ValidateCode("AAAAAA", "someone-else")
	if result.Valid || result.Reason != "CODE_NOT_FOUND" {
		t.Errorf("expected CODE_NOT_FOUND, got %+v", result)
	}

	result, _ = service.ValidateCode(referrer.ReferralCode, "referrer")
	if result.Valid || result.Reason != "SELF_REFERRAL" {
		t.Errorf("expected SELF_REFERRAL, got %+v", result)
	}

	if _, err := service.Redeem(referrer.ReferralCode, "referred"); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	result, _ = service.ValidateCode(referrer.ReferralCode, "referred")
	if result.Valid || result.Reason != "ALREADY_REDEEMED" {
		t.Errorf("expected ALREADY_REDEEMED, got %+v", result)
	}
}

func TestGetStats(t *testing.T) {
	db := setupTestDB(t)
	service := NewReferralService(db, testCatalog(t), config.ReferralConfig{ReferrerBonus: 20, RefereeBonus: 10})

	referrer := seedUser(t, db, "referrer", "free", 1)

	for _, uid := range []string{"a", "b", "c"} {
		if _, err := service.Redeem(referrer.ReferralCode, uid); err != nil {
			t.Fatalf("redeem for %s failed: %v", uid, err)
		}
	}

	stats, err := service.GetStats("referrer")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.TotalReferred != 3 {
		t.Errorf("expected 3 referred, got %d", stats.TotalReferred)
	}
	if stats.TotalEarned != 60 {
		t.Errorf("expected 60 earned, got %d", stats.TotalEarned)
	}
	if len(stats.Recent) != 3 {
		t.Errorf("expected 3 recent referrals, got %d", len(stats.Recent))
	}
	if stats.ReferralCode != referrer.ReferralCode {
		t.Errorf("expected code %q, got %q", referrer.ReferralCode, stats.ReferralCode)
	}
	if stats.LastReferralAt == nil {
		t.Error("expected last referral timestamp")
	}

	_, err = service.GetStats("nobody")
	if apperr.CodeOf(err) != "USER_NOT_FOUND" {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}
}
