package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB for PostgreSQL JSON support
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, &j)
}

// AdminLog records admin actions for audit trail. Entries are append-only.
type AdminLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AdminUID       string    `gorm:"size:64;not null;index" json:"admin_uid"`
	Action         string    `gorm:"size:50;not null" json:"action"`
	TxnID          string    `gorm:"size:36;index" json:"txn_id"`
	UserUID        string    `gorm:"size:64" json:"user_uid"`
	PlanID         string    `gorm:"size:20" json:"plan_id"`
	AmountLamports int64     `json:"amount_lamports"`
	Notes          string    `gorm:"type:text" json:"notes,omitempty"`
	Details        JSONB     `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AdminLog model
func (AdminLog) TableName() string {
	return "admin_logs"
}
