// Package billing - рекуррентные подписки через Stripe и разбор их вебхуков.
package billing

import (
	"context"
	"errors"
	"time"

	"docvault_backend/internal/models"
	"docvault_backend/internal/quota"
)

var (
	// ErrNotConfigured - ключи провайдера не заданы
	ErrNotConfigured = errors.New("billing provider is not configured")
	// ErrInvalidSignature - подпись вебхука не прошла проверку
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// CreatedSubscription - результат оформления подписки у провайдера
type CreatedSubscription struct {
	CustomerID       string
	SubscriptionID   string
	Status           models.SubscriptionStatus
	CurrentPeriodEnd *time.Time
}

// Provider - операции с подписками у провайдера рекуррентных платежей
type Provider interface {
	// CreateSubscription создаёт клиента (если customerID пуст) и подписку на priceID
	CreateSubscription(ctx context.Context, userID, email, customerID, priceID string) (*CreatedSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// WebhookVerifier проверяет подпись и разбирает событие
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// Event - проверенное событие провайдера
type Event struct {
	ID           string
	Type         string
	Subscription *SubscriptionChange // nil для неподписочных событий
}

// SubscriptionChange - изменение подписки, извлечённое из события
type SubscriptionChange struct {
	SubscriptionID   string
	CustomerID       string
	RawStatus        string
	Status           models.SubscriptionStatus
	PriceID          string
	CurrentPeriodEnd *time.Time
	UserID           string // из metadata, если проставлен при создании
}

// NormalizeStatus сводит статусы Stripe к трём локальным
func NormalizeStatus(raw string) models.SubscriptionStatus {
	switch raw {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "canceled", "incomplete_expired":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusInactive
	}
}

// PriceBook - соответствие тарифов и цен провайдера
type PriceBook map[quota.Plan]string

// NewPriceBook строит справочник из конфигурации plan -> price id
func NewPriceBook(prices map[string]string) (PriceBook, error) {
	book := make(PriceBook, len(prices))
	for name, price := range prices {
		plan, err := quota.ParsePlan(name)
		if err != nil {
			return nil, err
		}
		if price != "" {
			book[plan] = price
		}
	}
	return book, nil
}

func (b PriceBook) PriceFor(plan quota.Plan) (string, bool) {
	price, ok := b[plan]
	return price, ok
}

func (b PriceBook) PlanFor(priceID string) (quota.Plan, bool) {
	for plan, price := range b {
		if price == priceID {
			return plan, true
		}
	}
	return "", false
}

// DisabledProvider используется, когда Stripe не настроен
type DisabledProvider struct{}

func (DisabledProvider) CreateSubscription(context.Context, string, string, string, string) (*CreatedSubscription, error) {
	return nil, ErrNotConfigured
}

func (DisabledProvider) CancelSubscription(context.Context, string) error {
	return ErrNotConfigured
}
