package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"airdrop-backend/internal/apperr"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
)

// ClaimService enforces the daily-claim limit and credits balances. All
// mutations happen inside a single database transaction; the per-key
// idempotency marker makes client retries a safe no-op.
type ClaimService struct {
	db       *gorm.DB
	catalog  *config.PlanCatalog
	location *time.Location
}

// NewClaimService creates a new ClaimService. utcOffsetHours pins the
// business day used for the daily limit (a product rule, not a bug).
func NewClaimService(db *gorm.DB, catalog *config.PlanCatalog, utcOffsetHours int) *ClaimService {
	name := fmt.Sprintf("UTC%+d", utcOffsetHours)
	return &ClaimService{
		db:       db,
		catalog:  catalog,
		location: time.FixedZone(name, utcOffsetHours*3600),
	}
}

// DayKey returns the business-day bucket for t.
func (s *ClaimService) DayKey(t time.Time) string {
	return t.In(s.location).Format("2006-01-02")
}

// nextReset returns when the current business day rolls over.
func (s *ClaimService) nextReset(t time.Time) time.Time {
	local := t.In(s.location)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, s.location)
}

// ClaimResult is the outcome of a claim attempt. AlreadyProcessed means
// the idempotency key had been accepted before; the retry changed nothing.
type ClaimResult struct {
	Accepted         bool   `json:"accepted"`
	AlreadyProcessed bool   `json:"already_processed"`
	AmountCredited   int64  `json:"amount_credited"`
	RemainingToday   int    `json:"remaining_today"`
	DayKey           string `json:"day_key"`
}

// ClaimStatus is the read-only cooldown view for the client UI.
type ClaimStatus struct {
	PlanID         string    `json:"plan_id"`
	MaxDailyClaims int       `json:"max_daily_claims"`
	ClaimedToday   int       `json:"claimed_today"`
	RemainingToday int       `json:"remaining_today"`
	RewardPerClaim int64     `json:"reward_per_claim"`
	DayKey         string    `json:"day_key"`
	NextResetAt    time.Time `json:"next_reset_at"`
	Balance        int64     `json:"balance"`
}

// Claim performs one daily claim for uid under the caller-supplied
// idempotency key. Reward amounts come from the plan catalog, never from
// the client.
func (s *ClaimService) Claim(uid, idempotencyKey string) (*ClaimResult, error) {
	if uid == "" {
		return nil, apperr.New(apperr.Unauthenticated, "MISSING_UID", "caller identity is required")
	}
	if idempotencyKey == "" {
		return nil, apperr.New(apperr.InvalidArgument, "MISSING_IDEMPOTENCY_KEY", "idempotency key is required")
	}

	now := time.Now()
	dayKey := s.DayKey(now)

	var result *ClaimResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Replay check: an existing marker means this exact attempt was
		// already accepted. No mutation, report it as processed.
		var marker models.ClaimKey
		err := tx.Where("user_uid = ? AND key = ?", uid, idempotencyKey).First(&marker).Error
		if err == nil {
			result = &ClaimResult{
				Accepted:         false,
				AlreadyProcessed: true,
				DayKey:           dayKey,
			}
			var user models.User
			if err := tx.Where("uid = ?", uid).First(&user).Error; err == nil {
				result.RemainingToday = remainingClaims(&user, dayKey)
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user, err := ensureUser(tx, uid, s.catalog)
		if err != nil {
			return err
		}

		plan, ok := s.catalog.PlanByID(user.PlanID)
		if !ok {
			return apperr.New(apperr.Internal, "UNKNOWN_PLAN", "user %s has unknown plan %q", uid, user.PlanID)
		}

		// Day rollover: a stored count from a previous day key counts
		// as zero for the limit check.
		effectiveCount := user.TodayClaimCount
		if user.LastClaimDayKey != dayKey {
			effectiveCount = 0
		}

		if effectiveCount >= plan.MaxDailyClaims {
			return apperr.New(apperr.ResourceExhausted, "CLAIM_LIMIT_REACHED",
				"daily claim limit of %d reached for %s", plan.MaxDailyClaims, dayKey)
		}

		amount := plan.RewardPerClaim

		// Guarded update on the exact values read above. A concurrent
		// committed claim changes them and drops RowsAffected to zero,
		// which aborts this attempt instead of over-crediting.
		res := tx.Model(&models.User{}).
			Where("uid = ? AND today_claim_count = ? AND last_claim_day_key = ?",
				uid, user.TodayClaimCount, user.LastClaimDayKey).
			Updates(map[string]interface{}{
				"balance":            gorm.Expr("balance + ?", amount),
				"today_claim_count":  effectiveCount + 1,
				"last_claim_day_key": dayKey,
				"last_claim_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the guarded update to a concurrently committed claim.
			// Re-read and report the real condition: when the day's limit
			// is now exhausted the caller gets the cooldown signal, not a
			// generic conflict.
			var current models.User
			if err := tx.Where("uid = ?", uid).First(&current).Error; err != nil {
				return err
			}
			return claimConflictError(&current, plan, dayKey)
		}

		claim := models.Claim{
			UserUID:        uid,
			DayKey:         dayKey,
			Amount:         amount,
			IdempotencyKey: idempotencyKey,
			Source:         "daily",
		}
		if err := tx.Create(&claim).Error; err != nil {
			return fmt.Errorf("failed to create claim record: %w", err)
		}

		// The unique marker index is the race backstop: a concurrent
		// claim with the same key aborts here, rolling everything back.
		key := models.ClaimKey{UserUID: uid, Key: idempotencyKey}
		if err := tx.Create(&key).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.AlreadyExists, "DUPLICATE_CLAIM_KEY",
					"idempotency key already processed")
			}
			return fmt.Errorf("failed to create claim key: %w", err)
		}

		result = &ClaimResult{
			Accepted:       true,
			AmountCredited: amount,
			RemainingToday: plan.MaxDailyClaims - (effectiveCount + 1),
			DayKey:         dayKey,
		}
		return nil
	})

	if err != nil {
		// A duplicate key lost a race against an identical request that
		// committed first; surface it as the idempotent no-op it is.
		if apperr.CodeOf(err) == "DUPLICATE_CLAIM_KEY" {
			return &ClaimResult{Accepted: false, AlreadyProcessed: true, DayKey: dayKey}, nil
		}
		return nil, err
	}

	if result.Accepted {
		log.Printf("Claim accepted: user=%s day=%s amount=%d remaining=%d",
			uid, dayKey, result.AmountCredited, result.RemainingToday)
	}
	return result, nil
}

// GetClaimStatus returns the cooldown view for uid. Users without a
// document yet see the full lowest-tier allowance.
func (s *ClaimService) GetClaimStatus(uid string) (*ClaimStatus, error) {
	now := time.Now()
	dayKey := s.DayKey(now)

	var user models.User
	err := s.db.Where("uid = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		plan := s.catalog.LowestTier()
		return &ClaimStatus{
			PlanID:         plan.ID,
			MaxDailyClaims: plan.MaxDailyClaims,
			RemainingToday: plan.MaxDailyClaims,
			RewardPerClaim: plan.RewardPerClaim,
			DayKey:         dayKey,
			NextResetAt:    s.nextReset(now),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	plan, ok := s.catalog.PlanByID(user.PlanID)
	if !ok {
		return nil, apperr.New(apperr.Internal, "UNKNOWN_PLAN", "user %s has unknown plan %q", uid, user.PlanID)
	}

	claimed := user.TodayClaimCount
	if user.LastClaimDayKey != dayKey {
		claimed = 0
	}

	return &ClaimStatus{
		PlanID:         user.PlanID,
		MaxDailyClaims: plan.MaxDailyClaims,
		ClaimedToday:   claimed,
		RemainingToday: plan.MaxDailyClaims - claimed,
		RewardPerClaim: plan.RewardPerClaim,
		DayKey:         dayKey,
		NextResetAt:    s.nextReset(now),
		Balance:        user.Balance,
	}, nil
}

// claimConflictError classifies a lost guarded update against the user's
// re-read state. An exhausted daily limit is reported as such so the
// client shows the cooldown UI; anything else is an explicit retry hint.
func claimConflictError(user *models.User, plan config.Plan, dayKey string) error {
	claimed := user.TodayClaimCount
	if user.LastClaimDayKey != dayKey {
		claimed = 0
	}
	if claimed >= plan.MaxDailyClaims {
		return apperr.New(apperr.ResourceExhausted, "CLAIM_LIMIT_REACHED",
			"daily claim limit of %d reached for %s", plan.MaxDailyClaims, dayKey)
	}
	return apperr.New(apperr.AlreadyExists, "CONCURRENT_CLAIM",
		"claim state changed concurrently, retry")
}

// remainingClaims computes how many claims uid has left for dayKey.
func remainingClaims(user *models.User, dayKey string) int {
	claimed := user.TodayClaimCount
	if user.LastClaimDayKey != dayKey {
		claimed = 0
	}
	remaining := user.MaxDailyClaims - claimed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
