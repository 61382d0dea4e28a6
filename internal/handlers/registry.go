package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	PaymentHandler      *PaymentHandler
	SubscriptionHandler *SubscriptionHandler
	DocumentHandler     *DocumentHandler
	FileHandler         *FileHandler
	WebhookHandler      *WebhookHandler
}
