// Package checkout creates Stripe hosted checkout sessions for membership
// tiers. The member's Discord ID rides along in the session metadata so the
// webhook can credit the right member when payment completes.
package checkout

import (
	"errors"
	"net/http"

	"membership-bot/config"
	"membership-bot/internal/domain/tiers"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
)

// SessionURL builds a hosted checkout session for the given member and tier
// and returns its redirect URL. Shared by the HTTP handler and the bot's
// /subscribe command.
func SessionURL(cfg *config.Config, memberID string, tier tiers.Tier) (string, error) {
	plan, ok := cfg.PlanForTier(tier)
	if !ok {
		return "", ErrNoPlanForTier
	}

	stripe.Key = cfg.StripeSecretKey

	params := &stripe.CheckoutSessionParams{
		SuccessURL:         stripe.String(cfg.CheckoutSuccessURL),
		CancelURL:          stripe.String(cfg.CheckoutCancelURL),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),

		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(plan.PriceID), Quantity: stripe.Int64(1)},
		},

		ClientReferenceID: stripe.String(memberID),
	}
	// Metadata must land on the session itself; the webhook reads it off
	// checkout.session.completed.
	params.AddMetadata("discord_id", memberID)
	params.AddMetadata("price_id", plan.PriceID)

	s, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	return s.URL, nil
}

// ErrNoPlanForTier means the tier exists but no Stripe price is configured
// to sell it.
var ErrNoPlanForTier = errors.New("no plan configured for tier")

type Handler struct {
	cfg *config.Config
}

func NewHandler(cfg *config.Config) *Handler {
	return &Handler{cfg: cfg}
}

// Create handles GET /create-checkout-session?discord_id=...&tier=...
// and redirects the buyer to Stripe's hosted page.
func (h *Handler) Create(c *gin.Context) {
	memberID := c.Query("discord_id")
	if memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing discord_id"})
		return
	}

	tier, ok := tiers.Parse(c.Query("tier"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown tier"})
		return
	}

	url, err := SessionURL(h.cfg, memberID, tier)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.Redirect(http.StatusSeeOther, url)
}
