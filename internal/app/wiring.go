package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docvault_backend/internal/billing"
	"docvault_backend/internal/config"
	"docvault_backend/internal/email"
	"docvault_backend/internal/locks"
	"docvault_backend/internal/logger"
	"docvault_backend/internal/metrics"
	"docvault_backend/internal/momo"
	"docvault_backend/internal/services"
	"docvault_backend/internal/storage"
)

var errGatewayNotConfigured = errors.New("mtn momo collection is not configured")

// newGateway создаёт клиент MoMo; в песочнице без API user/key они
// создаются при старте
func newGateway(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (services.PaymentGateway, error) {
	if cfg.MTN.CollectionPrimaryKey == "" {
		logger.Warn("MTN_COLLECTION_PRIMARY_KEY is not set, payments will fail with gateway unavailable")
		return unconfiguredGateway{}, nil
	}

	client, err := momo.NewClient(momo.Config{
		BaseURL:           cfg.MTN.BaseURL,
		SubscriptionKey:   cfg.MTN.CollectionPrimaryKey,
		APIUser:           cfg.MTN.APIUser,
		APIKey:            cfg.MTN.APIKey,
		TargetEnvironment: cfg.MTN.TargetEnvironment,
		CallbackHost:      cfg.MTN.CallbackHost,
		Timeout:           cfg.MTNTimeout(),
	}, momo.WithObserver(func(op string, d time.Duration, err error) {
		m.ObserveGateway(op, d, err)
		logger.GatewayLog(op, d, err)
	}))
	if err != nil {
		return nil, err
	}

	if !client.HasCredentials() {
		if !cfg.MTN.ProvisionSandbox || cfg.MTN.TargetEnvironment != "sandbox" {
			return nil, errors.New("MTN_API_USER and MTN_API_KEY are required outside sandbox provisioning")
		}
		creds, err := client.Provision(ctx)
		if err != nil {
			return nil, fmt.Errorf("provision momo sandbox user: %w", err)
		}
		logger.Info("MoMo sandbox API user provisioned", "api_user", creds.APIUser)
	}
	return client, nil
}

type unconfiguredGateway struct{}

func (unconfiguredGateway) InitiateTransfer(context.Context, momo.TransferRequest) (string, error) {
	return "", &momo.Error{Op: "request_to_pay", Kind: momo.KindUnavailable, Err: errGatewayNotConfigured}
}

func (unconfiguredGateway) TransferStatus(context.Context, string) (*momo.TransferStatus, error) {
	return nil, &momo.Error{Op: "transfer_status", Kind: momo.KindUnavailable, Err: errGatewayNotConfigured}
}

func storageConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Type:         cfg.Storage.Type,
		BasePath:     cfg.Storage.BasePath,
		BaseURL:      cfg.Storage.BaseURL,
		Bucket:       cfg.Storage.Bucket,
		Region:       cfg.Storage.Region,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		Endpoint:     cfg.Storage.Endpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
	}
}

func (a *App) newLocker(ctx context.Context, cfg *config.Config) (locks.Locker, error) {
	if cfg.Locks.Backend != "redis" {
		return locks.NewMemoryLocker(), nil
	}
	client, err := locks.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { client.Close() })
	logger.Info("Redis locks enabled")
	return locks.NewRedisLocker(client, cfg.LockTTL()), nil
}

func newBillingProvider(cfg *config.Config) billing.Provider {
	provider, err := billing.NewStripeProvider(cfg.Stripe.SecretKey, nil)
	if err != nil {
		logger.Warn("Stripe is not configured, recurring subscriptions are disabled")
		return billing.DisabledProvider{}
	}
	return provider
}

func newMailProvider(cfg *config.Config) (email.Provider, error) {
	if !cfg.Email.Enabled {
		return email.NoopProvider{}, nil
	}
	provider, err := email.NewSMTPProvider(&email.SMTPConfig{
		Host:      cfg.Email.SMTPHost,
		Port:      cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	})
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}
	return provider, nil
}
