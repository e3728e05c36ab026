package models

// Unlimited marks a quota that is not enforced for the plan.
const Unlimited = -1

// PlanLimits is the quota set attached to a plan. Every tier resolves to a
// non-nil PlanLimits; unknown input falls back to the free plan's limits.
type PlanLimits struct {
	ScanLimit         int `json:"scanLimit"`
	EbayListingsLimit int `json:"ebayListingsLimit"`
	ShowcaseLimit     int `json:"showcaseLimit"`
	BulkScanLimit     int `json:"bulkScanLimit"`
}

// Plan is a billable product configuration. Loaded into an immutable catalog
// at startup; not user-owned.
type Plan struct {
	ID            string     `json:"id"`
	Tier          Tier       `json:"tier"`
	StripePriceID string     `json:"-"`
	Limits        PlanLimits `json:"limits"`
	PriceCents    int        `json:"priceCents"`
	Interval      string     `json:"interval"`
	Legacy        bool       `json:"-"`
}
