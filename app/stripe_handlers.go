package app

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/config"
	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"
	"github.com/huddleeco-commits/solevault-backend-sub001/auth"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"
)

type checkoutRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

// CreateCheckoutSession starts a Stripe Checkout Session for the requested
// plan. Only active (non-legacy, paid) plans are purchasable.
func CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	plan, ok := purchasablePlan(req.PlanID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plan"})
		return
	}
	if plan.StripePriceID == "" {
		log.Printf("missing Stripe price for plan=%s", plan.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	userID, err := userIDForSub(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("checkout user lookup failed sub=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	stripeCustomerID, err := ensureStripeCustomer(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("ensureStripeCustomer failed for sub=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("stripe checkout config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	frontendURL := strings.TrimRight(cfg.Stripe.FrontendURL, "/")
	if frontendURL == "" {
		log.Printf("missing Stripe config: frontend_url=false")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(stripeCustomerID),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
		Metadata: map[string]string{
			"plan_id":  plan.ID,
			"price_id": plan.StripePriceID,
		},
	}

	sess, err := session.New(params)
	if err != nil {
		log.Printf("stripe checkout session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "url": sess.URL})
}

func purchasablePlan(planID string) (models.Plan, bool) {
	for _, plan := range ActivePlans() {
		if plan.ID == planID {
			return plan, true
		}
	}
	return models.Plan{}, false
}

// StripeWebhook verifies and applies billing events. Signature failures are
// rejected with 400 before any state is touched; handler failures return 500
// so Stripe redelivers the event.
func StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("stripe webhook config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}
	endpointSecret := cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	// Verification needs the exact raw bytes, never a re-serialized form.
	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	if err := applyBillingEvent(c.Request.Context(), event); err != nil {
		log.Printf("stripe event %s (%s) failed: %v", event.ID, event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// CreatePortalSession creates a Stripe Customer Portal session so the user
// can manage their subscription.
func CreatePortalSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}
	if db == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db not initialized"})
		return
	}

	user, err := getUserByAuth0Sub(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("portal lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load customer"})
		return
	}
	if !user.StripeCustomerID.Valid || user.StripeCustomerID.String == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stripe customer missing for user"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("portal config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}
	frontendURL := strings.TrimRight(cfg.Stripe.FrontendURL, "/")
	if frontendURL == "" {
		log.Printf("missing Stripe config: frontend_url=false")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID.String),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}

	sess, err := portal.New(params)
	if err != nil {
		log.Printf("stripe portal session failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

// ListPlans returns the purchasable plan catalog.
func ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": ActivePlans()})
}

// GetBillingHistory returns the user's activation history, newest first.
func GetBillingHistory(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	userID, err := userIDForSub(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("billing history user lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	subs, err := listSubscriptions(c.Request.Context(), userID)
	if err != nil {
		log.Printf("billing history lookup failed user=%s err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load billing history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(subs), "subscriptions": subs})
}
