package models

type PaymentStatus string
type PaymentProvider string
type SubscriptionStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"

	PaymentProviderMTNMoMo PaymentProvider = "mtn_momo"
	PaymentProviderPayPal  PaymentProvider = "paypal"

	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// IsTerminal - из терминального статуса переходов нет
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSuccessful, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}
