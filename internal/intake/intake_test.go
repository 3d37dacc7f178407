package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"membership-bot/config"
	"membership-bot/internal/domain/billing"
	"membership-bot/internal/domain/tiers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLedger struct {
	calls     int
	lastTier  tiers.Tier
	lastDur   time.Duration
	expiresAt time.Time
	err       error
}

func (f *fakeLedger) UpsertAndExtend(_ context.Context, memberID string, tier tiers.Tier, duration time.Duration) (time.Time, error) {
	f.calls++
	f.lastTier = tier
	f.lastDur = duration
	return f.expiresAt, f.err
}

type fakeEvents struct {
	seen      map[string]bool
	markErr   error
	forgotten []string
}

func (f *fakeEvents) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

func (f *fakeEvents) Forget(_ context.Context, eventID string) error {
	f.forgotten = append(f.forgotten, eventID)
	delete(f.seen, eventID)
	return nil
}

type fakePayments struct {
	recorded []billing.Payment
	err      error
}

func (f *fakePayments) Record(_ context.Context, p *billing.Payment) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, *p)
	return nil
}

type fakeSyncer struct {
	synced []string
	err    error
}

func (f *fakeSyncer) SyncMember(_ context.Context, memberID string) error {
	f.synced = append(f.synced, memberID)
	return f.err
}

func testPlans() map[string]config.PlanSpec {
	return map[string]config.PlanSpec{
		"price_fighter": {PriceID: "price_fighter", Tier: tiers.Fighter, Duration: 30 * 24 * time.Hour},
	}
}

func validEvent() CheckoutEvent {
	return CheckoutEvent{
		EventID:       "evt_1",
		SessionID:     "cs_1",
		MemberID:      "1234567890",
		PriceID:       "price_fighter",
		AmountTotal:   2900,
		Currency:      "eur",
		PaymentStatus: "paid",
	}
}

func TestProcessAppliesPayment(t *testing.T) {
	expiry := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{expiresAt: expiry}
	events := &fakeEvents{}
	payments := &fakePayments{}
	syncer := &fakeSyncer{}

	p := NewProcessor(testPlans(), ledger, events, payments, syncer, zap.NewNop())

	res, err := p.Process(context.Background(), validEvent())
	require.NoError(t, err)

	assert.Equal(t, tiers.Fighter, res.Tier)
	assert.Equal(t, expiry, res.ExpiresAt)
	assert.Equal(t, 1, ledger.calls)
	assert.Equal(t, 30*24*time.Hour, ledger.lastDur)

	require.Len(t, payments.recorded, 1)
	assert.Equal(t, "cs_1", payments.recorded[0].StripeSessionID)
	assert.Equal(t, "paid", payments.recorded[0].Status)

	assert.Equal(t, []string{"1234567890"}, syncer.synced)
}

func TestProcessDuplicateEventDoesNotMutate(t *testing.T) {
	ledger := &fakeLedger{expiresAt: time.Now()}
	events := &fakeEvents{}
	payments := &fakePayments{}
	syncer := &fakeSyncer{}

	p := NewProcessor(testPlans(), ledger, events, payments, syncer, zap.NewNop())

	_, err := p.Process(context.Background(), validEvent())
	require.NoError(t, err)

	_, err = p.Process(context.Background(), validEvent())
	assert.ErrorIs(t, err, ErrDuplicateEvent)

	assert.Equal(t, 1, ledger.calls)
	assert.Len(t, payments.recorded, 1)
	assert.Len(t, syncer.synced, 1)
}

func TestProcessMalformedEvent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CheckoutEvent)
	}{
		{"missing event id", func(ev *CheckoutEvent) { ev.EventID = "" }},
		{"missing session id", func(ev *CheckoutEvent) { ev.SessionID = "" }},
		{"missing member id", func(ev *CheckoutEvent) { ev.MemberID = "" }},
		{"missing price id", func(ev *CheckoutEvent) { ev.PriceID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{}
			events := &fakeEvents{}
			p := NewProcessor(testPlans(), ledger, events, &fakePayments{}, &fakeSyncer{}, zap.NewNop())

			ev := validEvent()
			tt.mutate(&ev)

			_, err := p.Process(context.Background(), ev)
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.Equal(t, 0, ledger.calls)
			assert.Empty(t, events.seen)
		})
	}
}

func TestProcessUnknownPlan(t *testing.T) {
	ledger := &fakeLedger{}
	events := &fakeEvents{}
	p := NewProcessor(testPlans(), ledger, events, &fakePayments{}, &fakeSyncer{}, zap.NewNop())

	ev := validEvent()
	ev.PriceID = "price_unmapped"

	_, err := p.Process(context.Background(), ev)
	assert.ErrorIs(t, err, ErrUnknownPlan)
	assert.Equal(t, 0, ledger.calls)
	assert.Empty(t, events.seen)
}

func TestProcessLedgerFailureReleasesEventID(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("db down")}
	events := &fakeEvents{}
	payments := &fakePayments{}
	p := NewProcessor(testPlans(), ledger, events, payments, &fakeSyncer{}, zap.NewNop())

	_, err := p.Process(context.Background(), validEvent())
	require.Error(t, err)

	// The dedup mark must be rolled back so the provider's retry is fresh.
	assert.Equal(t, []string{"evt_1"}, events.forgotten)
	assert.Empty(t, payments.recorded)

	// Retry after recovery succeeds.
	ledger.err = nil
	_, err = p.Process(context.Background(), validEvent())
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.calls)
}

func TestProcessPaymentHistoryFailureIsNotFatal(t *testing.T) {
	ledger := &fakeLedger{expiresAt: time.Now()}
	payments := &fakePayments{err: errors.New("history table down")}
	syncer := &fakeSyncer{}
	p := NewProcessor(testPlans(), ledger, &fakeEvents{}, payments, syncer, zap.NewNop())

	_, err := p.Process(context.Background(), validEvent())
	require.NoError(t, err)
	assert.Len(t, syncer.synced, 1)
}

func TestProcessSyncFailureIsNotFatal(t *testing.T) {
	ledger := &fakeLedger{expiresAt: time.Now()}
	syncer := &fakeSyncer{err: errors.New("gateway hiccup")}
	p := NewProcessor(testPlans(), ledger, &fakeEvents{}, &fakePayments{}, syncer, zap.NewNop())

	res, err := p.Process(context.Background(), validEvent())
	require.NoError(t, err)
	assert.NotNil(t, res)
}
