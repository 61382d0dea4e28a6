package email

import (
	"context"
	"fmt"
)

// Receipt - данные письма об успешной оплате
type Receipt struct {
	To           string
	FullName     string
	ReferenceID  string
	Amount       string
	Currency     string
	Plan         string
	StorageLimit string
}

// ReceiptMailer отправляет квитанции об оплате
type ReceiptMailer struct {
	provider Provider
	renderer TemplateRenderer
}

func NewReceiptMailer(provider Provider, renderer TemplateRenderer) *ReceiptMailer {
	return &ReceiptMailer{provider: provider, renderer: renderer}
}

func (m *ReceiptMailer) SendReceipt(ctx context.Context, r Receipt) error {
	html, err := m.renderer.Render(TemplatePaymentReceipt, TemplateData{
		"FullName":     r.FullName,
		"ReferenceID":  r.ReferenceID,
		"Amount":       r.Amount,
		"Currency":     r.Currency,
		"Plan":         r.Plan,
		"StorageLimit": r.StorageLimit,
	})
	if err != nil {
		return err
	}

	return m.provider.Send(ctx, &Email{
		To:       []string{r.To},
		Subject:  fmt.Sprintf("Payment received: %s plan", r.Plan),
		Body:     fmt.Sprintf("Payment %s of %s %s received. Plan: %s.", r.ReferenceID, r.Amount, r.Currency, r.Plan),
		HTMLBody: html,
	})
}

// FormatBytes - человекочитаемый размер для писем
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
