package models

import (
	"time"
)

// Payment transaction statuses.
const (
	TxnStatusPending  = "pending"
	TxnStatusPaid     = "paid"
	TxnStatusFailed   = "failed"
	TxnStatusRefunded = "refunded"
)

// PaymentTransaction is a payment intent and its lifecycle:
// pending -> paid -> paid+PlanUpgraded (terminal), or pending -> failed,
// or paid -> refunded. PlanUpgraded may only become true while status is
// "paid" and never transitions back.
type PaymentTransaction struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TxnID          string     `gorm:"uniqueIndex;size:36;not null" json:"txn_id"`
	UserUID        string     `gorm:"size:64;not null;index" json:"user_uid"`
	PlanID         string     `gorm:"size:20;not null" json:"plan_id"`
	Status         string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	Provider       string     `gorm:"size:20;not null;default:solana" json:"provider"`
	AmountLamports int64      `gorm:"not null" json:"amount_lamports"`
	Currency       string     `gorm:"size:10;not null;default:SOL" json:"currency"`
	ProviderRef    *string    `gorm:"size:128" json:"provider_ref,omitempty"`
	PlanUpgraded   bool       `gorm:"not null;default:false" json:"plan_upgraded"`
	ApprovedBy     *string    `gorm:"size:64" json:"approved_by,omitempty"`
	ApprovalNotes  string     `gorm:"type:text" json:"approval_notes,omitempty"`
	ApprovalMethod string     `gorm:"size:20" json:"approval_method,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
}

// TableName specifies the table name for PaymentTransaction model
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
