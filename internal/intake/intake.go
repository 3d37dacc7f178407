// Package intake is the idempotent ingestion boundary for payment events.
// Signature verification happens at the HTTP layer; this package owns event
// deduplication, plan resolution, and the ledger write.
package intake

import (
	"context"
	"errors"
	"time"

	"membership-bot/config"
	"membership-bot/internal/domain/billing"
	"membership-bot/internal/domain/tiers"
	stripeinfra "membership-bot/internal/infra/stripe"

	"go.uber.org/zap"
)

var (
	// ErrMalformedEvent: required fields missing from the session metadata.
	// Permanent; retries would not fix it, so the caller acks and drops.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrDuplicateEvent: the event ID was already processed. Benign.
	ErrDuplicateEvent = errors.New("duplicate event")
	// ErrUnknownPlan: the price ID is not in the configured plan map.
	// A configuration gap; acked and dropped, surfaced in logs.
	ErrUnknownPlan = errors.New("unknown plan")
)

type Ledger interface {
	UpsertAndExtend(ctx context.Context, memberID string, tier tiers.Tier, duration time.Duration) (time.Time, error)
}

type Events interface {
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Payments interface {
	Record(ctx context.Context, p *billing.Payment) error
}

// Syncer grants roles for a single member right after a ledger write.
type Syncer interface {
	SyncMember(ctx context.Context, memberID string) error
}

// CheckoutEvent is the subset of a verified checkout.session.completed event
// the processor acts on.
type CheckoutEvent struct {
	EventID       string
	SessionID     string
	MemberID      string
	PriceID       string
	AmountTotal   int64
	Currency      string
	PaymentStatus string
}

// Result reports what a processed event did to the ledger.
type Result struct {
	Tier      tiers.Tier
	ExpiresAt time.Time
}

type Processor struct {
	plans    map[string]config.PlanSpec
	ledger   Ledger
	events   Events
	payments Payments
	syncer   Syncer
	log      *zap.Logger
}

func NewProcessor(plans map[string]config.PlanSpec, ledger Ledger, events Events, payments Payments, syncer Syncer, log *zap.Logger) *Processor {
	return &Processor{
		plans:    plans,
		ledger:   ledger,
		events:   events,
		payments: payments,
		syncer:   syncer,
		log:      log,
	}
}

// Process applies one verified checkout event. Exactly one ledger mutation
// per event ID: duplicates short-circuit before any write.
func (p *Processor) Process(ctx context.Context, ev CheckoutEvent) (*Result, error) {
	if ev.EventID == "" || ev.SessionID == "" || ev.MemberID == "" || ev.PriceID == "" {
		return nil, ErrMalformedEvent
	}

	plan, ok := p.plans[ev.PriceID]
	if !ok {
		p.log.Warn("checkout for unmapped price id",
			zap.String("price_id", ev.PriceID), zap.String("session_id", ev.SessionID))
		return nil, ErrUnknownPlan
	}

	fresh, err := p.events.MarkProcessed(ctx, ev.EventID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, ErrDuplicateEvent
	}

	expiresAt, err := p.ledger.UpsertAndExtend(ctx, ev.MemberID, plan.Tier, plan.Duration)
	if err != nil {
		// Release the event ID so the provider's retry can reprocess;
		// otherwise a transient DB failure would swallow the payment.
		if ferr := p.events.Forget(ctx, ev.EventID); ferr != nil {
			p.log.Error("releasing event after failed ledger write",
				zap.String("event_id", ev.EventID), zap.Error(ferr))
		}
		return nil, err
	}

	if err := p.payments.Record(ctx, &billing.Payment{
		MemberID:        ev.MemberID,
		Tier:            string(plan.Tier),
		StripeSessionID: ev.SessionID,
		StripeEventID:   ev.EventID,
		AmountTotal:     ev.AmountTotal,
		Currency:        ev.Currency,
		Status:          stripeinfra.NormalizePaymentStatus(ev.PaymentStatus),
	}); err != nil {
		// History only; the ledger write already succeeded.
		p.log.Error("recording payment history",
			zap.String("session_id", ev.SessionID), zap.Error(err))
	}

	p.log.Info("payment applied",
		zap.String("member_id", ev.MemberID),
		zap.String("tier", string(plan.Tier)),
		zap.Time("expires_at", expiresAt))

	if p.syncer != nil {
		// Grant roles now instead of waiting for the next sweep. A failure
		// here self-heals on the sweep, so it never fails the webhook.
		if err := p.syncer.SyncMember(ctx, ev.MemberID); err != nil {
			p.log.Warn("immediate role sync failed, sweep will retry",
				zap.String("member_id", ev.MemberID), zap.Error(err))
		}
	}

	return &Result{Tier: plan.Tier, ExpiresAt: expiresAt}, nil
}
