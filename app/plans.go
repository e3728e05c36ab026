// Package app implements the SoleVault billing and transfer core.
package app

import (
	"os"
	"sort"
	"strings"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"
)

// planCatalog is built once at init and never mutated afterwards.
var planCatalog = buildPlanCatalog()

const freePlanID = "free"

// canonicalPlanForTier maps a bare tier name to its monthly plan id. Legacy
// tiers remap to their grandfathered plan rows; do not collapse them into
// the current-generation tiers.
var canonicalPlanForTier = map[models.Tier]string{
	models.TierFree:    freePlanID,
	models.TierPower:   "power_monthly",
	models.TierDealer:  "dealer_monthly",
	models.TierStarter: "starter_monthly",
	models.TierPro:     "pro_monthly",
	models.TierPremium: "premium_monthly",
}

func buildPlanCatalog() map[string]models.Plan {
	plans := []models.Plan{
		{
			ID:   freePlanID,
			Tier: models.TierFree,
			Limits: models.PlanLimits{
				ScanLimit:         25,
				EbayListingsLimit: 0,
				ShowcaseLimit:     1,
				BulkScanLimit:     0,
			},
		},
		{
			ID:            "power_monthly",
			Tier:          models.TierPower,
			StripePriceID: os.Getenv("STRIPE_PRICE_POWER_MONTHLY"),
			PriceCents:    999,
			Interval:      "month",
			Limits: models.PlanLimits{
				ScanLimit:         500,
				EbayListingsLimit: 100,
				ShowcaseLimit:     5,
				BulkScanLimit:     50,
			},
		},
		{
			ID:            "dealer_monthly",
			Tier:          models.TierDealer,
			StripePriceID: os.Getenv("STRIPE_PRICE_DEALER_MONTHLY"),
			PriceCents:    2999,
			Interval:      "month",
			Limits: models.PlanLimits{
				ScanLimit:         models.Unlimited,
				EbayListingsLimit: models.Unlimited,
				ShowcaseLimit:     models.Unlimited,
				BulkScanLimit:     500,
			},
		},
		{
			ID:            "dealer_annual",
			Tier:          models.TierDealer,
			StripePriceID: os.Getenv("STRIPE_PRICE_DEALER_ANNUAL"),
			PriceCents:    29900,
			Interval:      "year",
			Limits: models.PlanLimits{
				ScanLimit:         models.Unlimited,
				EbayListingsLimit: models.Unlimited,
				ShowcaseLimit:     models.Unlimited,
				BulkScanLimit:     500,
			},
		},
		// Grandfathered plans from the first pricing generation. Hidden from
		// new signups but still resolvable for existing subscribers.
		{
			ID:            "starter_monthly",
			Tier:          models.TierStarter,
			StripePriceID: os.Getenv("STRIPE_PRICE_STARTER_MONTHLY"),
			PriceCents:    499,
			Interval:      "month",
			Legacy:        true,
			Limits: models.PlanLimits{
				ScanLimit:         200,
				EbayListingsLimit: 25,
				ShowcaseLimit:     3,
				BulkScanLimit:     20,
			},
		},
		{
			ID:            "pro_monthly",
			Tier:          models.TierPro,
			StripePriceID: os.Getenv("STRIPE_PRICE_PRO_MONTHLY"),
			PriceCents:    1499,
			Interval:      "month",
			Legacy:        true,
			Limits: models.PlanLimits{
				ScanLimit:         models.Unlimited,
				EbayListingsLimit: models.Unlimited,
				ShowcaseLimit:     models.Unlimited,
				BulkScanLimit:     100,
			},
		},
		{
			ID:            "premium_monthly",
			Tier:          models.TierPremium,
			StripePriceID: os.Getenv("STRIPE_PRICE_PREMIUM_MONTHLY"),
			PriceCents:    2499,
			Interval:      "month",
			Legacy:        true,
			Limits: models.PlanLimits{
				ScanLimit:         models.Unlimited,
				EbayListingsLimit: models.Unlimited,
				ShowcaseLimit:     models.Unlimited,
				BulkScanLimit:     200,
			},
		},
	}

	catalog := make(map[string]models.Plan, len(plans))
	for _, p := range plans {
		catalog[p.ID] = p
	}
	return catalog
}

// LimitsForPlan resolves a plan id or bare tier name to its quota set.
// Resolution order: exact plan id, tier-to-canonical-plan remap, free plan.
// Total by contract: unknown input yields the free plan's limits.
func LimitsForPlan(idOrTier string) models.PlanLimits {
	key := strings.ToLower(strings.TrimSpace(idOrTier))
	if plan, ok := planCatalog[key]; ok {
		return plan.Limits
	}
	if planID, ok := canonicalPlanForTier[models.Tier(key)]; ok {
		if plan, ok := planCatalog[planID]; ok {
			return plan.Limits
		}
	}
	return planCatalog[freePlanID].Limits
}

// TierForPriceID maps a Stripe price back to the tier it entitles. Unknown
// prices resolve to free so a stray billing event can never fail resolution.
func TierForPriceID(priceID string) models.Tier {
	if priceID == "" {
		return models.TierFree
	}
	for _, plan := range planCatalog {
		if plan.StripePriceID != "" && plan.StripePriceID == priceID {
			return tierForPlanID(plan.ID)
		}
	}
	return models.TierFree
}

// tierForPlanID applies the legacy-aware family mapping: premium-generation
// subscribers land on dealer, pro-generation on power.
func tierForPlanID(planID string) models.Tier {
	switch {
	case strings.HasPrefix(planID, "dealer"), strings.HasPrefix(planID, "premium"):
		return models.TierDealer
	case strings.HasPrefix(planID, "power"), strings.HasPrefix(planID, "pro"):
		return models.TierPower
	case strings.HasPrefix(planID, "starter"):
		return models.TierStarter
	default:
		return models.TierFree
	}
}

// ActivePlans returns the purchasable plans for presentation, ordered by
// price. Legacy and free plans are excluded.
func ActivePlans() []models.Plan {
	var out []models.Plan
	for _, plan := range planCatalog {
		if plan.Legacy || plan.ID == freePlanID {
			continue
		}
		out = append(out, plan)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PriceCents < out[j].PriceCents
	})
	return out
}
