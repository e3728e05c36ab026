package app

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/huddleeco-commits/solevault-backend-sub001/auth"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// validateLimiter throttles the public validate endpoint per client IP so
// the code space cannot be probed.
type validateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newValidateLimiter(rps float64, burst int) *validateLimiter {
	return &validateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (vl *validateLimiter) allow(clientIP string) bool {
	vl.mu.Lock()
	defer vl.mu.Unlock()
	lim, ok := vl.limiters[clientIP]
	if !ok {
		lim = rate.NewLimiter(vl.limit, vl.burst)
		vl.limiters[clientIP] = lim
	}
	return lim.Allow()
}

// RateLimitMiddleware rejects clients that exceed the per-IP budget.
func RateLimitMiddleware(vl *validateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !vl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// ValidateTransfer is the public lookup for a transfer code. Expired, used,
// and unknown codes are indistinguishable in the response.
func ValidateTransfer(c *gin.Context) {
	code := normalizeCode(c.Param("code"))
	if code == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid or expired code"})
		return
	}

	offer, err := ValidateTransferCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, ErrInvalidTransferCode) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid or expired code"})
			return
		}
		log.Printf("validate code failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// ClaimTransfer executes the ownership move for the authenticated caller.
func ClaimTransfer(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	claimantID, err := userIDForSub(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("claim user lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	code := normalizeCode(c.Param("code"))
	err = ClaimTransferCode(c.Request.Context(), code, claimantID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "transferred"})
	case errors.Is(err, ErrSelfClaim):
		c.JSON(http.StatusBadRequest, gin.H{"error": "you already own this card"})
	case errors.Is(err, ErrInvalidTransferCode):
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid or expired code"})
	default:
		log.Printf("claim failed code=%s err=%v", code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to claim card"})
	}
}

type initiateTransferRequest struct {
	SalePrice *float64 `json:"salePrice"`
}

// InitiateTransferHandler mints a new single-use code for a card the caller
// owns. A previously issued code on the card stops being claimable.
func InitiateTransferHandler(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	ownerID, err := userIDForSub(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("initiate user lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	var req initiateTransferRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	code, expiresAt, err := InitiateTransfer(c.Request.Context(), c.Param("cardID"), ownerID, req.SalePrice)
	if err != nil {
		if errors.Is(err, ErrCardNotOwned) {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}
		log.Printf("initiate transfer failed card=%s err=%v", c.Param("cardID"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create transfer code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": code, "expiresAt": expiresAt})
}

// GetCardHistory returns a card's provenance ledger to its current owner.
func GetCardHistory(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	callerID, err := userIDForSub(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("history user lookup failed sub=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	cardID := c.Param("cardID")
	ownerID, err := cardOwner(c.Request.Context(), cardID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	if ownerID != callerID {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	records, err := CardOwnershipHistory(c.Request.Context(), cardID)
	if err != nil {
		log.Printf("history lookup failed card=%s err=%v", cardID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cardId":  cardID,
		"count":   len(records),
		"history": records,
	})
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
