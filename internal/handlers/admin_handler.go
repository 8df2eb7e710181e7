package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"airdrop-backend/internal/auth"
	"airdrop-backend/internal/services"
)

// AdminHandler exposes the manual approval surface
type AdminHandler struct {
	adminService *services.AdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// RequireAdmin rejects callers not on the admin allow-list
func (h *AdminHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, exists := auth.GetUID(c)
		if !exists || !h.adminService.IsAdmin(uid) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ListPendingApprovals lists paid transactions awaiting manual approval
// GET /api/admin/approvals
func (h *AdminHandler) ListPendingApprovals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	txns, err := h.adminService.ListPendingApprovals(limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    txns,
	})
}

// ApprovePayment approves a paid transaction and applies the plan upgrade
// POST /api/admin/approvals/:txn_id/approve
func (h *AdminHandler) ApprovePayment(c *gin.Context) {
	uid, _ := auth.GetUID(c)

	var req struct {
		Notes string `json:"notes"`
	}
	// Notes are optional, tolerate an empty body
	_ = c.ShouldBindJSON(&req)

	result, err := h.adminService.ApprovePayment(uid, c.Param("txn_id"), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// RefundPayment marks a paid-but-not-upgraded transaction as refunded
// POST /api/admin/approvals/:txn_id/refund
func (h *AdminHandler) RefundPayment(c *gin.Context) {
	uid, _ := auth.GetUID(c)

	var req struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&req)

	result, err := h.adminService.RefundPayment(uid, c.Param("txn_id"), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetAdminLogs returns the admin action audit trail
// GET /api/admin/logs
func (h *AdminHandler) GetAdminLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := h.adminService.GetAdminLogs(limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
	})
}
