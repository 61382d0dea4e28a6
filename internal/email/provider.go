package email

import (
	"context"

	"docvault_backend/internal/logger"
)

// Provider отправляет письма
type Provider interface {
	Send(ctx context.Context, email *Email) error
}

// TemplateRenderer рендерит именованные шаблоны
type TemplateRenderer interface {
	Render(templateName string, data TemplateData) (string, error)
}

// NoopProvider только пишет в лог; используется при выключенном SMTP
type NoopProvider struct{}

func (NoopProvider) Send(ctx context.Context, email *Email) error {
	logger.CtxDebug(ctx, "Email delivery disabled, skipping", "to", email.To, "subject", email.Subject)
	return nil
}
