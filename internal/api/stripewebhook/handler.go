package stripewebhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"membership-bot/internal/intake"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
)

const maxBodyBytes = 65536

// Handler receives signed Stripe events. Signature verification always runs
// before any business field is parsed; a bad signature is the only 4xx that
// leaves state untouched by definition.
type Handler struct {
	endpointSecret string
	proc           *intake.Processor
	log            *zap.Logger
}

func New(endpointSecret string, proc *intake.Processor, log *zap.Logger) *Handler {
	return &Handler{endpointSecret: endpointSecret, proc: proc, log: log}
}

func (h *Handler) Handle(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.endpointSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.log.Warn("stripe signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse session"})
			return
		}
		h.handleCheckoutCompleted(c, event.ID, &session)

	default:
		// Acknowledge unhandled event kinds to stop retries.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (h *Handler) handleCheckoutCompleted(c *gin.Context, eventID string, session *stripe.CheckoutSession) {
	ev := intake.CheckoutEvent{
		EventID:       eventID,
		SessionID:     session.ID,
		MemberID:      session.Metadata["discord_id"],
		PriceID:       session.Metadata["price_id"],
		AmountTotal:   session.AmountTotal,
		Currency:      string(session.Currency),
		PaymentStatus: string(session.PaymentStatus),
	}

	res, err := h.proc.Process(c.Request.Context(), ev)
	switch {
	case errors.Is(err, intake.ErrDuplicateEvent):
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
	case errors.Is(err, intake.ErrMalformedEvent):
		h.log.Warn("checkout event missing metadata",
			zap.String("event_id", eventID), zap.String("session_id", session.ID))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	case errors.Is(err, intake.ErrUnknownPlan):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	case err != nil:
		// Retryable: Stripe redelivers on 5xx.
		h.log.Error("processing checkout event",
			zap.String("event_id", eventID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"status":     "received",
			"tier":       string(res.Tier),
			"expires_at": res.ExpiresAt,
		})
	}
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
