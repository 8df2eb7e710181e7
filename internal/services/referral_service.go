package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"airdrop-backend/internal/apperr"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
	"airdrop-backend/internal/utils"
)

// ReferralService links a referred user to a referrer exactly once and
// pays both sides atomically. Bonus amounts come from configuration,
// never from client input.
type ReferralService struct {
	db            *gorm.DB
	catalog       *config.PlanCatalog
	referrerBonus int64
	refereeBonus  int64
}

// NewReferralService creates a new ReferralService
func NewReferralService(db *gorm.DB, catalog *config.PlanCatalog, bonuses config.ReferralConfig) *ReferralService {
	return &ReferralService{
		db:            db,
		catalog:       catalog,
		referrerBonus: bonuses.ReferrerBonus,
		refereeBonus:  bonuses.RefereeBonus,
	}
}

// ValidationResult is the advisory outcome of a code pre-check. The
// authoritative checks are re-done inside Redeem's transaction.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
	ReferrerUID string `json:"referrer_uid,omitempty"`
}

// RedeemResult reports a completed referral.
type RedeemResult struct {
	BonusReceived int64  `json:"bonus_received"`
	ReferrerBonus int64  `json:"referrer_bonus"`
	ReferrerUID   string `json:"referrer_uid"`
}

// ReferralStatsResult aggregates a user's activity as a referrer.
type ReferralStatsResult struct {
	ReferralCode   string            `json:"referral_code"`
	TotalReferred  int               `json:"total_referred"`
	TotalEarned    int64             `json:"total_earned"`
	LastReferralAt *time.Time        `json:"last_referral_at,omitempty"`
	Recent         []models.Referral `json:"recent"`
}

// normalizeCode uppercases and trims a client-supplied referral code.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode is a read-only pre-check used for UI preview. It is
// advisory only; state can change before Redeem runs.
func (s *ReferralService) ValidateCode(code, requestingUID string) (*ValidationResult, error) {
	code = normalizeCode(code)
	if len(code) != utils.ReferralCodeLength {
		return nil, apperr.New(apperr.InvalidArgument, "MALFORMED_CODE",
			"referral codes are %d characters", utils.ReferralCodeLength)
	}

	var referrer models.User
	err := s.db.Where("referral_code = ?", code).First(&referrer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ValidationResult{Valid: false, Reason: "CODE_NOT_FOUND"}, nil
	}
	if err != nil {
		return nil, err
	}

	if referrer.UID == requestingUID {
		return &ValidationResult{Valid: false, Reason: "SELF_REFERRAL"}, nil
	}

	var requester models.User
	if err := s.db.Where("uid = ?", requestingUID).First(&requester).Error; err == nil {
		if requester.ReferredBy != nil {
			return &ValidationResult{Valid: false, Reason: "ALREADY_REDEEMED"}, nil
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &ValidationResult{Valid: true, ReferrerUID: referrer.UID}, nil
}

// Redeem applies code to referredUID. Exactly three writes happen
// atomically on success: the referral record, the referrer's balance and
// stats, and the referred user's balance and referred-by fields. A user
// can be the referred party at most once, ever.
func (s *ReferralService) Redeem(code, referredUID string) (*RedeemResult, error) {
	code = normalizeCode(code)
	if len(code) != utils.ReferralCodeLength {
		return nil, apperr.New(apperr.InvalidArgument, "MALFORMED_CODE",
			"referral codes are %d characters", utils.ReferralCodeLength)
	}

	var result *RedeemResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var referrer models.User
		err := tx.Where("referral_code = ?", code).First(&referrer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "CODE_NOT_FOUND", "referral code %s not found", code)
		}
		if err != nil {
			return err
		}

		if referrer.UID == referredUID {
			return apperr.New(apperr.InvalidArgument, "SELF_REFERRAL", "cannot redeem your own referral code")
		}

		referred, err := ensureUser(tx, referredUID, s.catalog)
		if err != nil {
			return err
		}

		if referred.ReferredBy != nil {
			return apperr.New(apperr.AlreadyExists, "ALREADY_REDEEMED", "user already redeemed a referral code")
		}

		// Defense in depth: the referred-by pre-check above can race, so
		// the record-level uniqueness is checked inside the same
		// transaction too.
		var existing models.Referral
		err = tx.Where("referred_uid = ?", referredUID).First(&existing).Error
		if err == nil {
			return apperr.New(apperr.AlreadyExists, "REFERRAL_EXISTS", "a referral already exists for this user")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()

		referral := models.Referral{
			ReferrerUID:        referrer.UID,
			ReferredUID:        referredUID,
			ReferralCode:       code,
			BonusAmount:        s.referrerBonus,
			RefereeBonusAmount: s.refereeBonus,
			Status:             "completed",
			Metadata: models.JSONB{
				"source": "code_redemption",
			},
		}
		if err := tx.Create(&referral).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.AlreadyExists, "REFERRAL_EXISTS", "a referral already exists for this user")
			}
			return err
		}

		// Guarded write closes the race window between the ReferredBy
		// pre-check and this update.
		res := tx.Model(&models.User{}).
			Where("uid = ? AND referred_by IS NULL", referredUID).
			Updates(map[string]interface{}{
				"balance":         gorm.Expr("balance + ?", s.refereeBonus),
				"referred_by":     code,
				"referred_by_uid": referrer.UID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.AlreadyExists, "ALREADY_REDEEMED", "user already redeemed a referral code")
		}

		if err := tx.Model(&models.User{}).
			Where("uid = ?", referrer.UID).
			Updates(map[string]interface{}{
				"balance":               gorm.Expr("balance + ?", s.referrerBonus),
				"total_referred":        gorm.Expr("total_referred + 1"),
				"total_referral_earned": gorm.Expr("total_referral_earned + ?", s.referrerBonus),
				"last_referral_at":      now,
			}).Error; err != nil {
			return err
		}

		result = &RedeemResult{
			BonusReceived: s.refereeBonus,
			ReferrerBonus: s.referrerBonus,
			ReferrerUID:   referrer.UID,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("Referral completed: code=%s referrer=%s referred=%s bonuses=%d/%d",
		code, result.ReferrerUID, referredUID, s.referrerBonus, s.refereeBonus)
	return result, nil
}

// GetStats returns referral statistics plus the most recent referrals
// where uid is the referrer.
func (s *ReferralService) GetStats(uid string) (*ReferralStatsResult, error) {
	var user models.User
	if err := s.db.Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user %s not found", uid)
		}
		return nil, err
	}

	var recent []models.Referral
	if err := s.db.Where("referrer_uid = ?", uid).
		Order("created_at DESC").Limit(10).Find(&recent).Error; err != nil {
		return nil, err
	}

	return &ReferralStatsResult{
		ReferralCode:   user.ReferralCode,
		TotalReferred:  user.TotalReferred,
		TotalEarned:    user.TotalReferralEarned,
		LastReferralAt: user.LastReferralAt,
		Recent:         recent,
	}, nil
}
