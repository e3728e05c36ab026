package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"

	"github.com/stripe/stripe-go/v79"
)

// eventHandler applies one billing event as an idempotent state transition.
// Handlers key every mutation off the Stripe customer id (or the
// subscription id for activation dedup) so redelivery converges.
type eventHandler func(ctx context.Context, event stripe.Event) error

var eventHandlers = map[stripe.EventType]eventHandler{
	"checkout.session.completed":    handleCheckoutCompleted,
	"customer.subscription.updated": handleSubscriptionUpdated,
	"customer.subscription.deleted": handleSubscriptionDeleted,
	"invoice.payment_succeeded":     handleInvoicePaymentSucceeded,
	"invoice.payment_failed":        handleInvoicePaymentFailed,
}

// lapsedStatuses are the provider states that end an entitlement.
var lapsedStatuses = map[stripe.SubscriptionStatus]bool{
	stripe.SubscriptionStatusPastDue:  true,
	stripe.SubscriptionStatusUnpaid:   true,
	stripe.SubscriptionStatusCanceled: true,
}

// applyBillingEvent routes a verified event to its handler. Unrecognized
// event types are acknowledged without effect so Stripe stops redelivering.
func applyBillingEvent(ctx context.Context, event stripe.Event) error {
	handler, ok := eventHandlers[event.Type]
	if !ok {
		return nil
	}
	return handler(ctx, event)
}

// handleCheckoutCompleted activates the purchased tier and appends one row of
// subscription history. Redelivery of the same activation is a no-op: the
// subscription id is the dedup key, checked inside the same transaction that
// writes both rows.
func handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("unmarshal checkout session: %w", err)
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	subscriptionID := ""
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}
	if customerID == "" || subscriptionID == "" {
		return errors.New("checkout session missing customer or subscription id")
	}

	// Price and plan ride on session metadata stamped at checkout creation.
	priceID := sess.Metadata["price_id"]
	tier := TierForPriceID(priceID)
	planName := sess.Metadata["plan_id"]
	if planName == "" {
		planName = canonicalPlanForTier[tier]
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var alreadyRecorded bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions WHERE stripe_subscription_id = $1
		);
	`, subscriptionID).Scan(&alreadyRecorded)
	if err != nil {
		return err
	}
	if alreadyRecorded {
		log.Printf("checkout redelivery ignored subscription=%s", subscriptionID)
		return tx.Commit()
	}

	var userID string
	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET tier = $1,
		    subscription_status = $2,
		    stripe_subscription_id = $3,
		    stripe_subscription_status = 'active'
		WHERE stripe_customer_id = $4
		RETURNING id;
	`, tier, models.StatusActive, subscriptionID, customerID).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no user for stripe customer %s", customerID)
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (
			user_id, stripe_customer_id, stripe_subscription_id,
			stripe_price_id, plan_name, status
		)
		VALUES ($1, $2, $3, $4, $5, 'active')
		ON CONFLICT (stripe_subscription_id) DO NOTHING;
	`, userID, customerID, subscriptionID, priceID, planName)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("activated tier=%s customer=%s subscription=%s", tier, customerID, subscriptionID)
	return nil
}

// handleSubscriptionUpdated tracks the provider's view of the subscription.
// A lapsed status downgrades to free immediately; a healthy status re-resolves
// the tier from the current price (plan switches land here).
func handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	if customerID == "" {
		return errors.New("subscription event missing customer id")
	}

	if lapsedStatuses[sub.Status] {
		return downgradeToFree(ctx, customerID, string(sub.Status))
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	tier := TierForPriceID(priceID)

	_, err := db.ExecContext(ctx, `
		UPDATE users
		SET tier = $1,
		    subscription_status = $2,
		    stripe_subscription_status = $3
		WHERE stripe_customer_id = $4;
	`, tier, models.StatusActive, string(sub.Status), customerID)
	return err
}

// handleSubscriptionDeleted is the unconditional downgrade, keyed by customer.
func handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("unmarshal subscription: %w", err)
	}
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	if customerID == "" {
		return errors.New("subscription event missing customer id")
	}
	return downgradeToFree(ctx, customerID, "canceled")
}

// handleInvoicePaymentSucceeded heals a stale past_due after a successful
// payment retry. Tier is untouched.
func handleInvoicePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	customerID, err := invoiceCustomerID(event)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE users
		SET subscription_status = $1
		WHERE stripe_customer_id = $2;
	`, models.StatusActive, customerID)
	return err
}

// handleInvoicePaymentFailed opens the grace period. The tier survives until
// Stripe itself cancels or marks the subscription unpaid.
func handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	customerID, err := invoiceCustomerID(event)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE users
		SET subscription_status = $1
		WHERE stripe_customer_id = $2;
	`, models.StatusPastDue, customerID)
	return err
}

// listSubscriptions reads a user's activation history, newest first.
func listSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, stripe_customer_id, stripe_subscription_id,
		       stripe_price_id, plan_name, status, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC;
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var s models.Subscription
		var priceID, planName sql.NullString
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.StripeCustomerID,
			&s.StripeSubscriptionID,
			&priceID,
			&planName,
			&s.Status,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		s.StripePriceID = priceID.String
		s.PlanName = planName.String
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func invoiceCustomerID(event stripe.Event) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return "", fmt.Errorf("unmarshal invoice: %w", err)
	}
	if inv.Customer == nil || inv.Customer.ID == "" {
		return "", errors.New("invoice event missing customer id")
	}
	return inv.Customer.ID, nil
}

// downgradeToFree moves the user to free/cancelled, records the raw provider
// status, stamps the end date, and dispatches the downgrade notice. The
// notice is best effort: a failure is logged and never fails reconciliation.
func downgradeToFree(ctx context.Context, customerID, providerStatus string) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		email        sql.NullString
		name         sql.NullString
		previousTier models.Tier
	)
	err = tx.QueryRowContext(ctx, `
		SELECT email, name, tier
		FROM users
		WHERE stripe_customer_id = $1
		FOR UPDATE;
	`, customerID).Scan(&email, &name, &previousTier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No local user for this customer; nothing to downgrade.
			log.Printf("downgrade skipped, unknown customer=%s", customerID)
			return nil
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET tier = $1,
		    subscription_status = $2,
		    stripe_subscription_status = $3,
		    subscription_end_date = now()
		WHERE stripe_customer_id = $4;
	`, models.TierFree, models.StatusCancelled, providerStatus, customerID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("downgraded customer=%s provider_status=%s", customerID, providerStatus)

	if email.Valid && email.String != "" {
		dispatchDowngradeNotice(ctx, models.DowngradeNotice{
			Email:        email.String,
			Name:         name.String,
			PreviousTier: previousTier,
			Reason:       providerStatus,
		})
	}
	return nil
}
