// Package app provides user persistence helpers for authenticated requests.
package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"
	"github.com/huddleeco-commits/solevault-backend-sub001/auth"

	"github.com/gin-gonic/gin"
)

// UpsertUserFromClaims creates a user row if it does not already exist.
func UpsertUserFromClaims(ctx context.Context, claims *auth.Claims) error {
	if db == nil {
		return nil
	}
	if claims == nil || claims.Subject == "" {
		return nil
	}

	email := readStringClaim(claims.Raw, "email")
	name := readStringClaim(claims.Raw, "name")

	const q = `
		INSERT INTO users (auth0_sub, email, name, last_login, tier, subscription_status, usage_period_start)
		VALUES ($1, $2, $3, now(), $4, $5, date_trunc('month', now()))
		ON CONFLICT (auth0_sub) DO NOTHING;
	`

	_, err := db.ExecContext(
		ctx,
		q,
		claims.Subject,
		nullIfEmpty(email),
		nullIfEmpty(name),
		models.TierFree,
		models.StatusActive,
	)
	return err
}

func readStringClaim(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	val, ok := raw[key]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func getUserByAuth0Sub(ctx context.Context, auth0Sub string) (models.User, error) {
	var user models.User
	var email, name sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, email, name, tier, subscription_status,
		       stripe_customer_id, stripe_subscription_id, stripe_subscription_status,
		       subscription_end_date,
		       scans_used, ebay_listings_used, showcases_used, usage_period_start
		FROM users
		WHERE auth0_sub = $1;
	`, auth0Sub).Scan(
		&user.ID,
		&email,
		&name,
		&user.Tier,
		&user.SubscriptionStatus,
		&user.StripeCustomerID,
		&user.StripeSubscriptionID,
		&user.StripeSubscriptionStatus,
		&user.SubscriptionEndDate,
		&user.ScansUsed,
		&user.EbayListingsUsed,
		&user.ShowcasesUsed,
		&user.UsagePeriodStart,
	)
	if err != nil {
		return models.User{}, err
	}
	user.Auth0Sub = auth0Sub
	user.Email = email.String
	user.Name = name.String
	return user, nil
}

// userIDForSub resolves the internal user id for a verified subject.
func userIDForSub(ctx context.Context, auth0Sub string) (string, error) {
	if auth0Sub == "" {
		return "", errors.New("missing auth0 sub")
	}
	var id string
	err := db.QueryRowContext(ctx, `
		SELECT id FROM users WHERE auth0_sub = $1;
	`, auth0Sub).Scan(&id)
	return id, err
}

// Health is a public health check endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Me returns the authenticated user's subscription state.
func Me(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	user, err := getUserByAuth0Sub(c.Request.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = UpsertUserFromClaims(c.Request.Context(), claims)
			user, err = getUserByAuth0Sub(c.Request.Context(), claims.Subject)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
			return
		}
	}

	var endDate any
	if user.SubscriptionEndDate.Valid {
		endDate = user.SubscriptionEndDate.Time
	}

	c.JSON(http.StatusOK, gin.H{
		"email":               user.Email,
		"name":                user.Name,
		"tier":                user.Tier,
		"status":              user.SubscriptionStatus,
		"subscriptionEndDate": endDate,
	})
}
