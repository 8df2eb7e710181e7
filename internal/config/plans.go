package config

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the lamport denomination of one SOL.
const LamportsPerSOL = 1_000_000_000

// Plan describes one purchasable service tier. Tier 0 is the free default
// every new account starts on.
type Plan struct {
	ID             string          `json:"id"`
	Tier           int             `json:"tier"`
	PriceSOL       decimal.Decimal `json:"price_sol"`
	PriceLamports  int64           `json:"price_lamports"`
	MaxDailyClaims int             `json:"max_daily_claims"`
	RewardPerClaim int64           `json:"reward_per_claim"`
}

// PlanCatalog is the validated, read-only plan table injected into the
// engines. Reward and price amounts always come from here, never from
// client input.
type PlanCatalog struct {
	byID    map[string]Plan
	ordered []Plan
}

// NewPlanCatalog validates a plan list and builds a catalog. Validation
// runs once at process start; the engines assume a consistent catalog.
func NewPlanCatalog(plans []Plan) (*PlanCatalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}

	byID := make(map[string]Plan, len(plans))
	tiers := make(map[int]string, len(plans))

	for _, p := range plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan with empty id")
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		if other, dup := tiers[p.Tier]; dup {
			return nil, fmt.Errorf("plans %q and %q share tier %d", other, p.ID, p.Tier)
		}
		if p.MaxDailyClaims <= 0 {
			return nil, fmt.Errorf("plan %q: max daily claims must be positive", p.ID)
		}
		if p.RewardPerClaim <= 0 {
			return nil, fmt.Errorf("plan %q: reward per claim must be positive", p.ID)
		}

		// Lamport price must be the exact SOL price, no rounding drift.
		wantLamports := p.PriceSOL.Mul(decimal.NewFromInt(LamportsPerSOL))
		if !wantLamports.IsInteger() || wantLamports.IntPart() != p.PriceLamports {
			return nil, fmt.Errorf("plan %q: price %s SOL does not match %d lamports",
				p.ID, p.PriceSOL, p.PriceLamports)
		}

		byID[p.ID] = p
		tiers[p.Tier] = p.ID
	}

	ordered := make([]Plan, len(plans))
	copy(ordered, plans)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Tier < ordered[j].Tier })

	// Higher tiers must never pay worse or cost less than lower ones.
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if cur.RewardPerClaim < prev.RewardPerClaim {
			return nil, fmt.Errorf("plan %q (tier %d) rewards less per claim than %q (tier %d)",
				cur.ID, cur.Tier, prev.ID, prev.Tier)
		}
		if cur.PriceLamports < prev.PriceLamports {
			return nil, fmt.Errorf("plan %q (tier %d) costs less than %q (tier %d)",
				cur.ID, cur.Tier, prev.ID, prev.Tier)
		}
	}

	return &PlanCatalog{byID: byID, ordered: ordered}, nil
}

// DefaultPlanCatalog returns the built-in plan table.
func DefaultPlanCatalog() (*PlanCatalog, error) {
	return NewPlanCatalog([]Plan{
		{
			ID:             "free",
			Tier:           0,
			PriceSOL:       decimal.Zero,
			PriceLamports:  0,
			MaxDailyClaims: 1,
			RewardPerClaim: 1,
		},
		{
			ID:             "silver",
			Tier:           1,
			PriceSOL:       decimal.NewFromFloat(0.25),
			PriceLamports:  250_000_000,
			MaxDailyClaims: 3,
			RewardPerClaim: 2,
		},
		{
			ID:             "gold",
			Tier:           2,
			PriceSOL:       decimal.NewFromFloat(0.75),
			PriceLamports:  750_000_000,
			MaxDailyClaims: 5,
			RewardPerClaim: 5,
		},
		{
			ID:             "platinum",
			Tier:           3,
			PriceSOL:       decimal.NewFromFloat(1.5),
			PriceLamports:  1_500_000_000,
			MaxDailyClaims: 10,
			RewardPerClaim: 10,
		},
	})
}

// PlanByID looks up a plan by id.
func (c *PlanCatalog) PlanByID(id string) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// ActivePlans returns all plans ordered by tier.
func (c *PlanCatalog) ActivePlans() []Plan {
	out := make([]Plan, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// LowestTier returns the default plan for new accounts.
func (c *PlanCatalog) LowestTier() Plan {
	return c.ordered[0]
}
