// Package models defines tier, subscription, and usage tracking fields.
package models

import (
	"database/sql"
	"time"
)

type Tier string

const (
	TierFree   Tier = "free"
	TierPower  Tier = "power"
	TierDealer Tier = "dealer"

	// Legacy tiers kept for grandfathered subscribers. Never offered to new
	// signups; resolvable through the plan catalog's remap.
	TierStarter Tier = "starter"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
)

type User struct {
	ID                       string             `db:"id"`
	Auth0Sub                 string             `db:"auth0_sub"`
	Email                    string             `db:"email"`
	Name                     string             `db:"name"`
	Tier                     Tier               `db:"tier"`
	SubscriptionStatus       SubscriptionStatus `db:"subscription_status"`
	StripeCustomerID         sql.NullString     `db:"stripe_customer_id"`
	StripeSubscriptionID     sql.NullString     `db:"stripe_subscription_id"`
	StripeSubscriptionStatus sql.NullString     `db:"stripe_subscription_status"`
	SubscriptionEndDate      sql.NullTime       `db:"subscription_end_date"`
	ScansUsed                int                `db:"scans_used"`
	EbayListingsUsed         int                `db:"ebay_listings_used"`
	ShowcasesUsed            int                `db:"showcases_used"`
	UsagePeriodStart         time.Time          `db:"usage_period_start"`
}

// Subscription is one row of the append-style activation history. Rows are
// appended on checkout completion and never deleted.
type Subscription struct {
	ID                   string    `db:"id" json:"id"`
	UserID               string    `db:"user_id" json:"-"`
	StripeCustomerID     string    `db:"stripe_customer_id" json:"-"`
	StripeSubscriptionID string    `db:"stripe_subscription_id" json:"-"`
	StripePriceID        string    `db:"stripe_price_id" json:"-"`
	PlanName             string    `db:"plan_name" json:"planName"`
	Status               string    `db:"status" json:"status"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
}
