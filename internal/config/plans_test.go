package config

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validPlans() []Plan {
	return []Plan{
		{ID: "free", Tier: 0, PriceSOL: decimal.Zero, PriceLamports: 0, MaxDailyClaims: 1, RewardPerClaim: 1},
		{ID: "pro", Tier: 1, PriceSOL: decimal.NewFromFloat(0.5), PriceLamports: 500_000_000, MaxDailyClaims: 5, RewardPerClaim: 3},
	}
}

func TestDefaultPlanCatalogIsValid(t *testing.T) {
	catalog, err := DefaultPlanCatalog()
	if err != nil {
		t.Fatalf("default catalog must validate: %v", err)
	}

	if got := catalog.LowestTier().ID; got != "free" {
		t.Errorf("expected free as the lowest tier, got %q", got)
	}

	plans := catalog.ActivePlans()
	for i := 1; i < len(plans); i++ {
		if plans[i].Tier <= plans[i-1].Tier {
			t.Errorf("plans not ordered by tier: %q after %q", plans[i].ID, plans[i-1].ID)
		}
	}
}

func TestNewPlanCatalogRejectsDuplicates(t *testing.T) {
	plans := validPlans()
	plans[1].ID = "free"
	if _, err := NewPlanCatalog(plans); err == nil {
		t.Error("expected duplicate id to fail validation")
	}

	plans = validPlans()
	plans[1].Tier = 0
	if _, err := NewPlanCatalog(plans); err == nil {
		t.Error("expected duplicate tier to fail validation")
	}
}

func TestNewPlanCatalogRejectsPriceDrift(t *testing.T) {
	plans := validPlans()
	plans[1].PriceLamports = 499_999_999
	_, err := NewPlanCatalog(plans)
	if err == nil {
		t.Fatal("expected lamport mismatch to fail validation")
	}
	if !strings.Contains(err.Error(), "lamports") {
		t.Errorf("unexpected error: %v", err)
	}

	plans = validPlans()
	plans[1].PriceSOL = decimal.RequireFromString("0.0000000005")
	plans[1].PriceLamports = 0
	if _, err := NewPlanCatalog(plans); err == nil {
		t.Error("expected sub-lamport price to fail validation")
	}
}

func TestNewPlanCatalogRejectsNonMonotonicTiers(t *testing.T) {
	plans := validPlans()
	plans[1].RewardPerClaim = 0
	if _, err := NewPlanCatalog(plans); err == nil {
		t.Error("expected non-positive reward to fail validation")
	}

	plans = validPlans()
	plans = append(plans, Plan{
		ID: "worse", Tier: 2,
		PriceSOL: decimal.NewFromFloat(1), PriceLamports: 1_000_000_000,
		MaxDailyClaims: 5, RewardPerClaim: 2,
	})
	if _, err := NewPlanCatalog(plans); err == nil {
		t.Error("expected a higher tier with a lower reward to fail validation")
	}

	plans = validPlans()
	plans = append(plans, Plan{
		ID: "cheaper", Tier: 2,
		PriceSOL: decimal.NewFromFloat(0.25), PriceLamports: 250_000_000,
		MaxDailyClaims: 10, RewardPerClaim: 5,
	})
	if _, err := NewPlanCatalog(plans); err == nil {
		t.Error("expected a higher tier with a lower price to fail validation")
	}
}

func TestPlanByID(t *testing.T) {
	catalog, err := NewPlanCatalog(validPlans())
	if err != nil {
		t.Fatalf("catalog failed: %v", err)
	}

	plan, ok := catalog.PlanByID("pro")
	if !ok || plan.RewardPerClaim != 3 {
		t.Errorf("lookup failed: %+v ok=%v", plan, ok)
	}

	if _, ok := catalog.PlanByID("missing"); ok {
		t.Error("expected missing plan to be absent")
	}
}
