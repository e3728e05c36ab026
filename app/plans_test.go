package app

import (
	"testing"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"
)

func TestLimitsForPlanTotality(t *testing.T) {
	inputs := []string{
		"free", "power", "dealer", "starter", "pro", "premium",
		"power_monthly", "dealer_monthly", "dealer_annual",
		"starter_monthly", "pro_monthly", "premium_monthly",
		"", "nonsense", "DEALER", "  power  ",
	}
	for _, in := range inputs {
		limits := LimitsForPlan(in)
		if limits.ScanLimit == 0 && limits.ShowcaseLimit == 0 {
			t.Fatalf("LimitsForPlan(%q) returned an empty quota set", in)
		}
	}
}

func TestLimitsForPlanUnknownFallsBackToFree(t *testing.T) {
	free := LimitsForPlan("free")
	for _, in := range []string{"", "enterprise", "gold_monthly", "42"} {
		if got := LimitsForPlan(in); got != free {
			t.Fatalf("LimitsForPlan(%q) = %+v, want free limits %+v", in, got, free)
		}
	}
}

func TestLimitsForPlanTierRemap(t *testing.T) {
	cases := []struct {
		tier   string
		planID string
	}{
		{"power", "power_monthly"},
		{"dealer", "dealer_monthly"},
		{"starter", "starter_monthly"},
		{"pro", "pro_monthly"},
		{"premium", "premium_monthly"},
	}
	for _, tc := range cases {
		t.Run(tc.tier, func(t *testing.T) {
			if got, want := LimitsForPlan(tc.tier), LimitsForPlan(tc.planID); got != want {
				t.Fatalf("LimitsForPlan(%q) = %+v, want %+v (the %s plan)", tc.tier, got, want, tc.planID)
			}
		})
	}
}

func TestLegacyTiersStayUnlimited(t *testing.T) {
	// Grandfathering policy: pro and premium subscribers keep their
	// unlimited scans even though the tiers are hidden from new signups.
	for _, tier := range []string{"pro", "premium"} {
		limits := LimitsForPlan(tier)
		if limits.ScanLimit != models.Unlimited {
			t.Fatalf("LimitsForPlan(%q).ScanLimit = %d, want unlimited", tier, limits.ScanLimit)
		}
	}
}

func TestTierForPriceID(t *testing.T) {
	t.Run("unknown price resolves to free", func(t *testing.T) {
		for _, price := range []string{"", "price_does_not_exist"} {
			if got := TierForPriceID(price); got != models.TierFree {
				t.Fatalf("TierForPriceID(%q) = %q, want free", price, got)
			}
		}
	})

	t.Run("family mapping", func(t *testing.T) {
		cases := map[string]models.Tier{
			"dealer_monthly":  models.TierDealer,
			"dealer_annual":   models.TierDealer,
			"premium_monthly": models.TierDealer,
			"power_monthly":   models.TierPower,
			"pro_monthly":     models.TierPower,
			"starter_monthly": models.TierStarter,
			"free":            models.TierFree,
		}
		for planID, want := range cases {
			if got := tierForPlanID(planID); got != want {
				t.Fatalf("tierForPlanID(%q) = %q, want %q", planID, got, want)
			}
		}
	})
}

func TestActivePlansHideLegacyAndFree(t *testing.T) {
	plans := ActivePlans()
	if len(plans) == 0 {
		t.Fatalf("ActivePlans returned no plans")
	}
	for _, p := range plans {
		if p.Legacy {
			t.Fatalf("ActivePlans leaked legacy plan %q", p.ID)
		}
		if p.ID == freePlanID {
			t.Fatalf("ActivePlans leaked the free plan")
		}
	}
	for i := 1; i < len(plans); i++ {
		if plans[i-1].PriceCents > plans[i].PriceCents {
			t.Fatalf("ActivePlans not sorted by price: %q before %q", plans[i-1].ID, plans[i].ID)
		}
	}
}
