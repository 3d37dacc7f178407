// Package admin exposes the operator surface: ledger and payment history
// reads, manual tier overrides, and an on-demand sweep. Every route sits
// behind JWT auth with the admin role.
package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"membership-bot/config"
	"membership-bot/internal/domain/tiers"
	"membership-bot/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Sweeper triggers reconciliation outside the timer.
type Sweeper interface {
	Sweep(ctx context.Context)
	SyncMember(ctx context.Context, memberID string) error
}

type Handler struct {
	cfg      *config.Config
	ledger   *store.LedgerStore
	payments *store.PaymentStore
	sweeper  Sweeper
	log      *zap.Logger
}

func NewHandler(cfg *config.Config, ledger *store.LedgerStore, payments *store.PaymentStore, sweeper Sweeper, log *zap.Logger) *Handler {
	return &Handler{cfg: cfg, ledger: ledger, payments: payments, sweeper: sweeper, log: log}
}

// GET /admin/subscriptions
func (h *Handler) ListSubscriptions(c *gin.Context) {
	recs, err := h.ledger.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	now := time.Now().UTC()
	out := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		out = append(out, gin.H{
			"member_id":  rec.MemberID,
			"tier":       rec.Tier,
			"expires_at": rec.ExpiresAt,
			"active":     rec.Active(now),
		})
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": out})
}

// GET /admin/payments?limit=50
func (h *Handler) ListPayments(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	payments, err := h.payments.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// GET /admin/plans
func (h *Handler) ListPlans(c *gin.Context) {
	out := make([]gin.H, 0, len(h.cfg.Plans))
	for _, p := range h.cfg.Plans {
		out = append(out, gin.H{
			"price_id": p.PriceID,
			"tier":     string(p.Tier),
			"days":     int(p.Duration.Hours() / 24),
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// POST /admin/subscriptions  {"member_id": "...", "tier": "...", "days": 30}
// Manual grant or tier change, same renewal math as a purchase.
func (h *Handler) SetSubscription(c *gin.Context) {
	var body struct {
		MemberID string `json:"member_id"`
		Tier     string `json:"tier"`
		Days     int    `json:"days"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.MemberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid member_id"})
		return
	}

	tier, ok := tiers.Parse(body.Tier)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown tier"})
		return
	}
	if body.Days < 1 || body.Days > 3650 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 3650"})
		return
	}

	expiresAt, err := h.ledger.UpsertAndExtend(c.Request.Context(),
		body.MemberID, tier, time.Duration(body.Days)*24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}

	h.log.Info("admin subscription override",
		zap.String("member_id", body.MemberID),
		zap.String("tier", string(tier)),
		zap.Int("days", body.Days))

	if err := h.sweeper.SyncMember(c.Request.Context(), body.MemberID); err != nil {
		h.log.Warn("role sync after override failed, sweep will retry",
			zap.String("member_id", body.MemberID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"member_id":  body.MemberID,
		"tier":       string(tier),
		"expires_at": expiresAt,
	})
}

// DELETE /admin/subscriptions/:member_id
func (h *Handler) DeleteSubscription(c *gin.Context) {
	memberID := c.Param("member_id")
	if memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing member_id"})
		return
	}

	rec, err := h.ledger.Get(c.Request.Context(), memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription for member"})
		return
	}

	// Expire the row rather than deleting it outright so reconciliation runs
	// the normal expiry path: roles removed first, row deleted after.
	if err := h.ledger.Expire(c.Request.Context(), memberID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke subscription"})
		return
	}

	h.log.Info("admin subscription revoked", zap.String("member_id", memberID))

	if err := h.sweeper.SyncMember(c.Request.Context(), memberID); err != nil {
		h.log.Warn("role revocation deferred to sweep",
			zap.String("member_id", memberID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": "revoked", "member_id": memberID})
}

// POST /admin/sweep
func (h *Handler) TriggerSweep(c *gin.Context) {
	go h.sweeper.Sweep(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "sweep started"})
}
