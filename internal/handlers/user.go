package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airdrop-backend/internal/auth"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/services"
)

// UserHandler exposes the profile view
type UserHandler struct {
	userService  *services.UserService
	claimService *services.ClaimService
	catalog      *config.PlanCatalog
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService, claimService *services.ClaimService, catalog *config.PlanCatalog) *UserHandler {
	return &UserHandler{
		userService:  userService,
		claimService: claimService,
		catalog:      catalog,
	}
}

// GetProfile returns the caller's account, plan and claim window in one shot
// GET /api/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
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

	status, err := h.claimService.GetClaimStatus(uid)
	if err != nil {
		respondError(c, err)
		return
	}

	plan, ok := h.catalog.PlanByID(user.PlanID)
	planView := gin.H{"id": user.PlanID}
	if ok {
		planView = gin.H{
			"id":               plan.ID,
			"max_daily_claims": plan.MaxDailyClaims,
			"reward_per_claim": plan.RewardPerClaim,
			"price_sol":        plan.PriceSOL,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"uid":               user.UID,
			"balance":           user.Balance,
			"plan":              planView,
			"plan_upgraded_at":  user.PlanUpgradedAt,
			"referral_code":     user.ReferralCode,
			"referred_by":       user.ReferredBy,
			"total_referred":    user.TotalReferred,
			"referral_earned":   user.TotalReferralEarned,
			"claims":            status,
			"created_at":        user.CreatedAt,
		},
	})
}
