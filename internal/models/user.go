package models

import (
	"time"
)

// User represents a user in the system. UID is the identity-provider
// subject (the Solana wallet address for wallet logins).
type User struct {
	UID            string     `gorm:"primaryKey;size:64" json:"uid"`
	Balance        int64      `gorm:"not null;default:0" json:"balance"`
	PlanID         string     `gorm:"size:20;not null;default:free" json:"plan_id"`
	MaxDailyClaims int        `gorm:"not null;default:1" json:"max_daily_claims"`
	PlanUpgradedAt *time.Time `json:"plan_upgraded_at,omitempty"`

	// Claim stats. TodayClaimCount is only meaningful while
	// LastClaimDayKey matches the current business-day key.
	TodayClaimCount int        `gorm:"not null;default:0" json:"today_claim_count"`
	LastClaimDayKey string     `gorm:"size:10;not null;default:''" json:"last_claim_day_key"`
	LastClaimAt     *time.Time `json:"last_claim_at,omitempty"`

	// ReferralCode is assigned at account creation and never changes.
	ReferralCode  string  `gorm:"uniqueIndex;size:6;not null" json:"referral_code"`
	ReferredBy    *string `gorm:"size:6" json:"referred_by,omitempty"`
	ReferredByUID *string `gorm:"size:64;index" json:"referred_by_uid,omitempty"`

	TotalReferred       int        `gorm:"not null;default:0" json:"total_referred"`
	TotalReferralEarned int64      `gorm:"not null;default:0" json:"total_referral_earned"`
	LastReferralAt      *time.Time `json:"last_referral_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
