package services

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"airdrop-backend/internal/apperr"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
)

// AdminService is the manual approval gate between "payment observed
// on-chain" and "entitlement granted". Admin identity is a fixed
// configuration allow-list, not data.
type AdminService struct {
	db        *gorm.DB
	catalog   *config.PlanCatalog
	adminUIDs map[string]bool
}

// NewAdminService creates a new AdminService with the given allow-list
func NewAdminService(db *gorm.DB, catalog *config.PlanCatalog, adminWallets []string) *AdminService {
	admins := make(map[string]bool, len(adminWallets))
	for _, w := range adminWallets {
		admins[w] = true
	}
	return &AdminService{db: db, catalog: catalog, adminUIDs: admins}
}

// IsAdmin checks the allow-list
func (s *AdminService) IsAdmin(uid string) bool {
	return s.adminUIDs[uid]
}

// ApprovalResult is the outcome of an approval or refund attempt.
type ApprovalResult struct {
	AlreadyProcessed bool   `json:"already_processed"`
	TxnID            string `json:"txn_id"`
	UserUID          string `json:"user_uid"`
	PlanID           string `json:"plan_id"`
}

// ApprovePayment grants the plan for a paid transaction. Re-approving an
// already-approved transaction is a detected no-op: no mutation, no
// second audit log entry. Approving anything not yet paid fails with the
// actual status. The plan promotion, approval stamp and audit entry
// commit together or not at all.
func (s *AdminService) ApprovePayment(adminUID, txnID, notes string) (*ApprovalResult, error) {
	if !s.IsAdmin(adminUID) {
		return nil, apperr.New(apperr.PermissionDenied, "NOT_ADMIN", "caller is not an admin")
	}

	var result *ApprovalResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txn models.PaymentTransaction
		err := tx.Where("txn_id = ?", txnID).First(&txn).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "TXN_NOT_FOUND", "transaction %s not found", txnID)
		}
		if err != nil {
			return err
		}

		if txn.PlanUpgraded {
			result = &ApprovalResult{
				AlreadyProcessed: true,
				TxnID:            txn.TxnID,
				UserUID:          txn.UserUID,
				PlanID:           txn.PlanID,
			}
			return nil
		}

		if txn.Status != models.TxnStatusPaid {
			return apperr.New(apperr.FailedPrecondition, "TXN_NOT_PAID",
				"transaction status is %q, expected paid", txn.Status)
		}

		// Should be impossible for an intent created through the
		// catalog, but an unknown plan must abort the whole approval
		// rather than leave approved-but-not-upgraded state.
		plan, ok := s.catalog.PlanByID(txn.PlanID)
		if !ok {
			return apperr.New(apperr.Internal, "UNKNOWN_PLAN",
				"transaction %s references unknown plan %q", txnID, txn.PlanID)
		}

		if err := applyPlanUpgrade(tx, txnID, txn.UserUID, plan, &adminUID, notes, "manual"); err != nil {
			return err
		}

		adminLog := models.AdminLog{
			AdminUID:       adminUID,
			Action:         "APPROVE_PAYMENT",
			TxnID:          txn.TxnID,
			UserUID:        txn.UserUID,
			PlanID:         txn.PlanID,
			AmountLamports: txn.AmountLamports,
			Notes:          notes,
			Details: models.JSONB{
				"approval_method": "manual",
			},
		}
		if err := tx.Create(&adminLog).Error; err != nil {
			return err
		}

		result = &ApprovalResult{
			TxnID:   txn.TxnID,
			UserUID: txn.UserUID,
			PlanID:  txn.PlanID,
		}
		return nil
	})

	if err != nil {
		// A concurrent approval won the guarded update; report the
		// idempotent no-op instead of an error.
		if apperr.CodeOf(err) == "ALREADY_APPROVED" {
			return &ApprovalResult{AlreadyProcessed: true, TxnID: txnID}, nil
		}
		return nil, err
	}

	if !result.AlreadyProcessed {
		log.Printf("Payment approved: txn=%s admin=%s user=%s plan=%s",
			result.TxnID, adminUID, result.UserUID, result.PlanID)
	}
	return result, nil
}

// RefundPayment marks a paid transaction refunded. Refunding after the
// plan was already granted is rejected; refunded is terminal.
func (s *AdminService) RefundPayment(adminUID, txnID, notes string) (*ApprovalResult, error) {
	if !s.IsAdmin(adminUID) {
		return nil, apperr.New(apperr.PermissionDenied, "NOT_ADMIN", "caller is not an admin")
	}

	var result *ApprovalResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txn models.PaymentTransaction
		err := tx.Where("txn_id = ?", txnID).First(&txn).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "TXN_NOT_FOUND", "transaction %s not found", txnID)
		}
		if err != nil {
			return err
		}

		if txn.Status == models.TxnStatusRefunded {
			result = &ApprovalResult{AlreadyProcessed: true, TxnID: txn.TxnID, UserUID: txn.UserUID, PlanID: txn.PlanID}
			return nil
		}
		if txn.PlanUpgraded {
			return apperr.New(apperr.FailedPrecondition, "PLAN_ALREADY_GRANTED",
				"transaction %s already granted its plan", txnID)
		}
		if txn.Status != models.TxnStatusPaid {
			return apperr.New(apperr.FailedPrecondition, "TXN_NOT_PAID",
				"transaction status is %q, expected paid", txn.Status)
		}

		res := tx.Model(&models.PaymentTransaction{}).
			Where("txn_id = ? AND status = ? AND plan_upgraded = ?", txnID, models.TxnStatusPaid, false).
			Updates(map[string]interface{}{
				"status":          models.TxnStatusRefunded,
				"approved_by":     adminUID,
				"approval_notes":  notes,
				"approval_method": "manual",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.FailedPrecondition, "TXN_NOT_PAID",
				"transaction changed concurrently, re-check its status")
		}

		adminLog := models.AdminLog{
			AdminUID:       adminUID,
			Action:         "REFUND_PAYMENT",
			TxnID:          txn.TxnID,
			UserUID:        txn.UserUID,
			PlanID:         txn.PlanID,
			AmountLamports: txn.AmountLamports,
			Notes:          notes,
		}
		if err := tx.Create(&adminLog).Error; err != nil {
			return err
		}

		result = &ApprovalResult{TxnID: txn.TxnID, UserUID: txn.UserUID, PlanID: txn.PlanID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyProcessed {
		log.Printf("Payment refunded: txn=%s admin=%s user=%s", result.TxnID, adminUID, result.UserUID)
	}
	return result, nil
}

// ListPendingApprovals returns paid transactions awaiting manual approval
func (s *AdminService) ListPendingApprovals(limit, offset int) ([]models.PaymentTransaction, error) {
	var txns []models.PaymentTransaction
	if err := s.db.Where("status = ? AND plan_upgraded = ?", models.TxnStatusPaid, false).
		Order("confirmed_at ASC").Limit(limit).Offset(offset).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// GetAdminLogs returns admin activity logs, newest first
func (s *AdminService) GetAdminLogs(limit, offset int) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	if err := s.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
