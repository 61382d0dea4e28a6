package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// dialer - часть gomail.Dialer, нужная провайдеру
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPProvider реализует Provider через gomail
type SMTPProvider struct {
	config *SMTPConfig
	dialer dialer
}

// NewSMTPProvider создает новый SMTP провайдер
func NewSMTPProvider(config *SMTPConfig) (*SMTPProvider, error) {
	if err := validate(config); err != nil {
		return nil, err
	}
	return &SMTPProvider{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
	}, nil
}

// NewSMTPProviderWithDialer - для тестов
func NewSMTPProviderWithDialer(config *SMTPConfig, d dialer) *SMTPProvider {
	return &SMTPProvider{config: config, dialer: d}
}

func validate(config *SMTPConfig) error {
	if config.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", config.Port)
	}
	if config.FromEmail == "" {
		return fmt.Errorf("SMTP from address is required")
	}
	return nil
}

// Send отправляет email сообщение
func (p *SMTPProvider) Send(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := p.buildMessage(email)
	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (p *SMTPProvider) buildMessage(email *Email) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.config.FromEmail, p.config.FromName)
	m.SetHeader("To", email.To...)
	m.SetHeader("Subject", email.Subject)

	switch {
	case email.HTMLBody != "" && email.Body != "":
		m.SetBody("text/plain", email.Body)
		m.AddAlternative("text/html", email.HTMLBody)
	case email.HTMLBody != "":
		m.SetBody("text/html", email.HTMLBody)
	default:
		m.SetBody("text/plain", email.Body)
	}
	return m
}
