package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airdrop-backend/internal/config"
)

// PlanHandler exposes the plan catalog
type PlanHandler struct {
	catalog *config.PlanCatalog
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(catalog *config.PlanCatalog) *PlanHandler {
	return &PlanHandler{catalog: catalog}
}

// ListPlans returns all purchasable plans ordered by tier
// GET /api/plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans := h.catalog.ActivePlans()

	out := make([]gin.H, 0, len(plans))
	for _, plan := range plans {
		out = append(out, gin.H{
			"id":               plan.ID,
			"tier":             plan.Tier,
			"price_sol":        plan.PriceSOL,
			"price_lamports":   plan.PriceLamports,
			"max_daily_claims": plan.MaxDailyClaims,
			"reward_per_claim": plan.RewardPerClaim,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    out,
	})
}
