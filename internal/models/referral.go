package models

import (
	"time"
)

// Referral represents a completed referral between two users. The unique
// index on ReferredUID enforces that a user can be referred at most once,
// ever, even under concurrent redeem attempts.
type Referral struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ReferrerUID        string    `gorm:"size:64;not null;index" json:"referrer_uid"`
	ReferredUID        string    `gorm:"size:64;not null;uniqueIndex" json:"referred_uid"`
	ReferralCode       string    `gorm:"size:6;not null;index" json:"referral_code"`
	BonusAmount        int64     `gorm:"not null" json:"bonus_amount"`
	RefereeBonusAmount int64     `gorm:"not null" json:"referee_bonus_amount"`
	Status             string    `gorm:"size:20;not null;default:completed" json:"status"`
	Metadata           JSONB     `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Referral model
func (Referral) TableName() string {
	return "referrals"
}
