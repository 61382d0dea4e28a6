package billing

import (
	"time"

	"github.com/stripe/stripe-go/v75/webhook"
)

// SignPayload строит заголовок Stripe-Signature для тестов и локальной отладки
func SignPayload(payload []byte, secret string, at time.Time) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return signed.Header
}
