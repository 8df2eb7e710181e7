package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"airdrop-backend/internal/auth"
	"airdrop-backend/internal/services"
)

// PaymentHandler exposes payment intent creation and confirmation
type PaymentHandler struct {
	paymentService *services.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateIntent opens a payment intent for a plan purchase
// POST /api/payments/intent
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		PlanID string `json:"plan_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.paymentService.CreateIntent(uid, req.PlanID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// ConfirmPayment verifies a transaction signature against the chain and
// settles the intent
// POST /api/payments/confirm
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		TxnID     string `json:"txn_id" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.paymentService.ConfirmPayment(c.Request.Context(), uid, req.TxnID, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetTransaction returns a single transaction owned by the caller
// GET /api/payments/:txn_id
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	txn, err := h.paymentService.GetTransaction(uid, c.Param("txn_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    txn,
	})
}

// GetHistory returns the caller's payment history
// GET /api/payments/history
func (h *PaymentHandler) GetHistory(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	txns, err := h.paymentService.GetUserTransactions(uid, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    txns,
	})
}
