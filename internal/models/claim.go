package models

import (
	"time"
)

// Claim is an append-only record of a successful daily claim. Claims are
// never mutated or deleted; summing amounts per user reconstructs the
// claim-attributable part of users.balance.
type Claim struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserUID        string    `gorm:"size:64;not null;index" json:"user_uid"`
	DayKey         string    `gorm:"size:10;not null;index" json:"day_key"`
	Amount         int64     `gorm:"not null" json:"amount"`
	IdempotencyKey string    `gorm:"size:128;not null" json:"idempotency_key"`
	Source         string    `gorm:"size:20;not null;default:daily" json:"source"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Claim model
func (Claim) TableName() string {
	return "claims"
}

// ClaimKey is an idempotency marker for a (user, key) claim attempt.
// Existence alone is the signal; the unique index doubles as the
// insert-if-absent lock that makes client retries safe.
type ClaimKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserUID   string    `gorm:"size:64;not null;uniqueIndex:ux_claim_keys_user_key,priority:1" json:"user_uid"`
	Key       string    `gorm:"size:128;not null;uniqueIndex:ux_claim_keys_user_key,priority:2" json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ClaimKey model
func (ClaimKey) TableName() string {
	return "claim_keys"
}
