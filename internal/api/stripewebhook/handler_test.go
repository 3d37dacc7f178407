package stripewebhook

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"membership-bot/config"
	"membership-bot/internal/domain/billing"
	"membership-bot/internal/domain/tiers"
	"membership-bot/internal/intake"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
)

const testSecret = "whsec_test_secret"

type memLedger struct {
	writes int
}

func (m *memLedger) UpsertAndExtend(_ context.Context, _ string, _ tiers.Tier, _ time.Duration) (time.Time, error) {
	m.writes++
	return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), nil
}

type memEvents struct {
	seen map[string]bool
}

func (m *memEvents) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[eventID] {
		return false, nil
	}
	m.seen[eventID] = true
	return true, nil
}

func (m *memEvents) Forget(_ context.Context, eventID string) error {
	delete(m.seen, eventID)
	return nil
}

type memPayments struct{}

func (memPayments) Record(_ context.Context, _ *billing.Payment) error { return nil }

func newTestRouter(t *testing.T, ledger *memLedger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	plans := map[string]config.PlanSpec{
		"price_fighter": {PriceID: "price_fighter", Tier: tiers.Fighter, Duration: 30 * 24 * time.Hour},
	}
	proc := intake.NewProcessor(plans, ledger, &memEvents{}, memPayments{}, nil, zap.NewNop())

	r := gin.New()
	r.POST("/webhook", New(testSecret, proc, zap.NewNop()).Handle)
	return r
}

func signedRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	ts := time.Now()
	sig := webhook.ComputeSignature(ts, []byte(payload), testSecret)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature",
		fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig)))
	return req
}

func checkoutPayload(eventID, memberID, priceID string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"amount_total": 2900,
				"currency": "eur",
				"payment_status": "paid",
				"metadata": {"discord_id": %q, "price_id": %q}
			}
		}
	}`, eventID, memberID, priceID)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ledger := &memLedger{}
	r := newTestRouter(t, ledger)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(checkoutPayload("evt_1", "m1", "price_fighter")))
	req.Header.Set("Stripe-Signature", "t=123,v1=deadbeef")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, ledger.writes)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	ledger := &memLedger{}
	r := newTestRouter(t, ledger)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(checkoutPayload("evt_1", "m1", "price_fighter")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, ledger.writes)
}

func TestWebhookAppliesCheckoutCompleted(t *testing.T) {
	ledger := &memLedger{}
	r := newTestRouter(t, ledger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, checkoutPayload("evt_1", "m1", "price_fighter")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"received"`)
	assert.Contains(t, w.Body.String(), `"tier":"fighter"`)
	assert.Equal(t, 1, ledger.writes)
}

func TestWebhookAcksDuplicateDelivery(t *testing.T) {
	ledger := &memLedger{}
	r := newTestRouter(t, ledger)

	payload := checkoutPayload("evt_1", "m1", "price_fighter")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, payload))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, payload))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"duplicate"`)

	assert.Equal(t, 1, ledger.writes)
}

func TestWebhookAcksMissingMetadata(t *testing.T) {
	ledger := &memLedger{}
	r := newTestRouter(t, ledger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, checkoutPayload("evt_1", "", "price_fighter")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ignored"`)
	assert.Equal(t, 0, ledger.writes)
}

func TestWebhookAcksUnknownPrice(t *testing.T) {
	ledger := &memLedger{}
	r := newTestRouter(t, ledger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, checkoutPayload("evt_1", "m1", "price_other")))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ignored"`)
	assert.Equal(t, 0, ledger.writes)
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	ledger := &memLedger{}
	r := newTestRouter(t, ledger)

	payload := `{"id": "evt_2", "type": "invoice.paid", "data": {"object": {}}}`

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, payload))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ignored"`)
	assert.Equal(t, 0, ledger.writes)
}
