package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airdrop-backend/internal/auth"
	"airdrop-backend/internal/services"
)

// ReferralHandler exposes the referral operations
type ReferralHandler struct {
	referralService *services.ReferralService
	userService     *services.UserService
}

// NewReferralHandler creates a new ReferralHandler
func NewReferralHandler(referralService *services.ReferralService, userService *services.UserService) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
		userService:     userService,
	}
}

// GetReferralCode returns the caller's shareable referral code
// GET /api/referral/code
func (h *ReferralHandler) GetReferralCode(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, err := h.userService.EnsureUser(uid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"referral_code": user.ReferralCode,
		},
	})
}

// ValidateCode previews whether a code can be redeemed. Advisory only;
// redeem re-checks everything atomically.
// POST /api/referral/validate
func (h *ReferralHandler) ValidateCode(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.referralService.ValidateCode(req.Code, uid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// RedeemCode redeems a referral code for the caller
// POST /api/referral/redeem
func (h *ReferralHandler) RedeemCode(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.referralService.Redeem(req.Code, uid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetStats returns referral statistics for the caller
// GET /api/referral/stats
func (h *ReferralHandler) GetStats(c *gin.Context) {
	uid, exists := auth.GetUID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	stats, err := h.referralService.GetStats(uid)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}
