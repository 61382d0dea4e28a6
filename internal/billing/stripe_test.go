package billing_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"docvault_backend/internal/billing"
	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

func subscriptionEvent(eventType, status, price string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "data": {"object": {
    "id": "sub_1",
    "object": "subscription",
    "status": %q,
    "customer": "cus_1",
    "current_period_end": 1700000000,
    "metadata": {"user_id": "user-1"},
    "items": {"object": "list", "data": [{"id": "si_1", "price": {"id": %q}}]}
  }}
}`, eventType, status, price))
}

func TestParseWebhook_SubscriptionUpdated(t *testing.T) {
	v := billing.NewStripeWebhookVerifier(secret)
	payload := subscriptionEvent(billing.EventSubscriptionUpdated, "trialing", "price_premium")

	ev, err := v.ParseWebhook(payload, billing.SignPayload(payload, secret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	require.NotNil(t, ev.Subscription)
	assert.Equal(t, "sub_1", ev.Subscription.SubscriptionID)
	assert.Equal(t, "cus_1", ev.Subscription.CustomerID)
	assert.Equal(t, "price_premium", ev.Subscription.PriceID)
	assert.Equal(t, "user-1", ev.Subscription.UserID)
	assert.Equal(t, models.SubscriptionStatusActive, ev.Subscription.Status)
	require.NotNil(t, ev.Subscription.CurrentPeriodEnd)
	assert.Equal(t, int64(1700000000), ev.Subscription.CurrentPeriodEnd.Unix())
}

func TestParseWebhook_RejectsBadSignatures(t *testing.T) {
	payload := subscriptionEvent(billing.EventSubscriptionDeleted, "canceled", "price_basic")

	cases := map[string]struct {
		verifier *billing.StripeWebhookVerifier
		header   string
	}{
		"wrong secret": {billing.NewStripeWebhookVerifier(secret), billing.SignPayload(payload, "other", time.Now())},
		"stale":        {billing.NewStripeWebhookVerifier(secret), billing.SignPayload(payload, secret, time.Now().Add(-time.Hour))},
		"missing":      {billing.NewStripeWebhookVerifier(secret), ""},
		"no secret":    {billing.NewStripeWebhookVerifier(""), billing.SignPayload(payload, "", time.Now())},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.verifier.ParseWebhook(payload, tc.header)
			assert.True(t, errors.Is(err, billing.ErrInvalidSignature), "got %v", err)
		})
	}
}

func TestParseWebhook_OtherEventsHaveNoSubscription(t *testing.T) {
	v := billing.NewStripeWebhookVerifier(secret)
	payload := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)

	ev, err := v.ParseWebhook(payload, billing.SignPayload(payload, secret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", ev.Type)
	assert.Nil(t, ev.Subscription)
}

func TestNormalizeStatus(t *testing.T) {
	for raw, want := range map[string]models.SubscriptionStatus{
		"active":             models.SubscriptionStatusActive,
		"trialing":           models.SubscriptionStatusActive,
		"canceled":           models.SubscriptionStatusCanceled,
		"incomplete_expired": models.SubscriptionStatusCanceled,
		"past_due":           models.SubscriptionStatusInactive,
		"incomplete":         models.SubscriptionStatusInactive,
		"":                   models.SubscriptionStatusInactive,
	} {
		assert.Equal(t, want, billing.NormalizeStatus(raw), raw)
	}
}

func TestPriceBook(t *testing.T) {
	book, err := billing.NewPriceBook(map[string]string{"basic": "price_b", "premium": "price_p", "enterprise": ""})
	require.NoError(t, err)

	plan, ok := book.PlanFor("price_p")
	assert.True(t, ok)
	assert.Equal(t, quota.PlanPremium, plan)

	_, ok = book.PriceFor(quota.PlanEnterprise)
	assert.False(t, ok)

	_, err = billing.NewPriceBook(map[string]string{"gold": "x"})
	assert.Error(t, err)
}

func TestNewStripeProviderRequiresKey(t *testing.T) {
	_, err := billing.NewStripeProvider("", nil)
	assert.ErrorIs(t, err, billing.ErrNotConfigured)
}
