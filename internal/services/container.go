package services

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	AuthService         AuthService
	PaymentService      PaymentService
	EntitlementService  EntitlementService
	QuotaService        QuotaService
	DocumentService     DocumentService
	SubscriptionService SubscriptionService
	WebhookService      WebhookService
}
