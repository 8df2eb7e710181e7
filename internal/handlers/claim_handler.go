package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airdrop-backend/internal/auth"
	"airdrop-backend/internal/services"
)

// ClaimHandler exposes the daily claim operations
type ClaimHandler struct {
	claimService *services.ClaimService
}

// NewClaimHandler creates a new ClaimHandler
func NewClaimHandler(claimService *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{claimService: claimService}
}

// Claim performs one daily claim. The client generates the idempotency
// key once per button press and retries with the same key on network
// failure.
// POST /api/claims
func (h *ClaimHandler) Claim(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		IdempotencyKey string `json:"idempotency_key" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.claimService.Claim(uid, req.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetStatus returns the cooldown view for the claim UI
// GET /api/claims/status
func (h *ClaimHandler) GetStatus(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	status, err := h.claimService.GetClaimStatus(uid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    status,
	})
}
