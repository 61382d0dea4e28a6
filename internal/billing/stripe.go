package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

// StripeProvider - Provider на Stripe API
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider создаёт клиента; backends nil - стандартные HTTP-бэкенды
func NewStripeProvider(secretKey string, backends *stripe.Backends) (*StripeProvider, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	return &StripeProvider{api: client.New(secretKey, backends)}, nil
}

func (p *StripeProvider) CreateSubscription(ctx context.Context, userID, email, customerID, priceID string) (*CreatedSubscription, error) {
	if customerID == "" {
		params := &stripe.CustomerParams{Email: stripe.String(email)}
		params.Context = ctx
		params.AddMetadata("user_id", userID)
		cust, err := p.api.Customers.New(params)
		if err != nil {
			return nil, fmt.Errorf("stripe create customer: %w", err)
		}
		customerID = cust.ID
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	sub, err := p.api.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create subscription: %w", err)
	}

	return &CreatedSubscription{
		CustomerID:       customerID,
		SubscriptionID:   sub.ID,
		Status:           NormalizeStatus(string(sub.Status)),
		CurrentPeriodEnd: unixTime(sub.CurrentPeriodEnd),
	}, nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := p.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

// StripeWebhookVerifier проверяет заголовок Stripe-Signature
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier с пустым секретом отклоняет все события
func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

func (v *StripeWebhookVerifier) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("%w: webhook secret is not configured", ErrInvalidSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	switch out.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		if ev.Data == nil {
			return nil, fmt.Errorf("event %s has no data", ev.ID)
		}
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription: %w", err)
		}
		out.Subscription = subscriptionChange(&sub)
	}
	return out, nil
}

func subscriptionChange(sub *stripe.Subscription) *SubscriptionChange {
	change := &SubscriptionChange{
		SubscriptionID:   sub.ID,
		RawStatus:        string(sub.Status),
		Status:           NormalizeStatus(string(sub.Status)),
		CurrentPeriodEnd: unixTime(sub.CurrentPeriodEnd),
	}
	if sub.Customer != nil {
		change.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		change.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.Metadata != nil {
		change.UserID = sub.Metadata["user_id"]
	}
	return change
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
