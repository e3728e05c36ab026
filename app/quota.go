// Package app enforces monthly usage limits derived from the plan catalog.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"
	"github.com/huddleeco-commits/solevault-backend-sub001/auth"

	"github.com/gin-gonic/gin"
)

type quotaError struct {
	Limit int
	Used  int
}

func (e quotaError) Error() string {
	return "monthly quota exceeded"
}

func monthStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func remaining(limit, used int) any {
	if limit == models.Unlimited {
		return nil
	}
	r := limit - used
	if r < 0 {
		r = 0
	}
	return r
}

func withinLimit(limit, used int) bool {
	return limit == models.Unlimited || used < limit
}

// GetQuota is the read-only projection over the entitlement resolver and the
// user row: tier, raw counters, remaining per quota, convenience flags.
func GetQuota(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	user, err := getUserByAuth0Sub(c.Request.Context(), claims.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	// Stale counters from a previous month read as zero.
	if user.UsagePeriodStart.Before(monthStartUTC(time.Now())) {
		user.ScansUsed = 0
		user.EbayListingsUsed = 0
		user.ShowcasesUsed = 0
	}

	limits := LimitsForPlan(string(user.Tier))

	c.JSON(http.StatusOK, gin.H{
		"tier": user.Tier,
		"usage": gin.H{
			"scans":        user.ScansUsed,
			"ebayListings": user.EbayListingsUsed,
			"showcases":    user.ShowcasesUsed,
		},
		"remaining": gin.H{
			"scans":        remaining(limits.ScanLimit, user.ScansUsed),
			"ebayListings": remaining(limits.EbayListingsLimit, user.EbayListingsUsed),
			"showcases":    remaining(limits.ShowcaseLimit, user.ShowcasesUsed),
		},
		"canScan": withinLimit(limits.ScanLimit, user.ScansUsed),
		"canList": withinLimit(limits.EbayListingsLimit, user.EbayListingsUsed),
	})
}

// CheckScanQuota reserves n scans for the user inside a serializable
// transaction, rolling the usage window when a new month has started.
// Returns quotaError when the plan's limit would be exceeded.
func CheckScanQuota(ctx context.Context, auth0Sub string, n int) error {
	if db == nil {
		return nil
	}
	if n < 0 {
		n = 0
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		tier        models.Tier
		scansUsed   int
		periodStart time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT tier, scans_used, usage_period_start
		FROM users
		WHERE auth0_sub = $1
		FOR UPDATE;
	`, auth0Sub).Scan(&tier, &scansUsed, &periodStart)
	if err != nil {
		return err
	}

	currentMonthStart := monthStartUTC(time.Now())
	if periodStart.Before(currentMonthStart) {
		scansUsed = 0
		periodStart = currentMonthStart
	}

	limits := LimitsForPlan(string(tier))
	if limits.ScanLimit != models.Unlimited && scansUsed+n > limits.ScanLimit {
		return quotaError{Limit: limits.ScanLimit, Used: scansUsed}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET scans_used = $1, usage_period_start = $2
		WHERE auth0_sub = $3;
	`, scansUsed+n, periodStart, auth0Sub)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ResetMonthlyUsage zeroes usage counters for rows whose period predates the
// current month. It never mutates tier; entitlements belong to the
// reconciler alone. Intended for a scheduled invoker.
func ResetMonthlyUsage(ctx context.Context) (int64, error) {
	if db == nil {
		return 0, errors.New("db not initialized")
	}

	res, err := db.ExecContext(ctx, `
		UPDATE users
		SET scans_used = 0,
		    ebay_listings_used = 0,
		    showcases_used = 0,
		    usage_period_start = date_trunc('month', now())
		WHERE usage_period_start < date_trunc('month', now());
	`)
	if err != nil {
		return 0, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Printf("monthly usage reset for %d users", rows)
	return rows, nil
}
