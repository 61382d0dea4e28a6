package config

import (
	"fmt"

	"docvault_backend/internal/quota"

	"github.com/shopspring/decimal"
)

// QuotaConfig - лимиты тарифов и пороги суммы платежа
type QuotaConfig struct {
	Limits     map[string]quota.Limits `yaml:"limits"`
	Thresholds struct {
		Premium    string `yaml:"premium"`
		Enterprise string `yaml:"enterprise"`
	} `yaml:"thresholds"`
}

func DefaultQuotaConfig() QuotaConfig {
	var qc QuotaConfig
	qc.Limits = make(map[string]quota.Limits)
	for plan, limits := range quota.DefaultLimits() {
		qc.Limits[plan.String()] = limits
	}
	t := quota.DefaultThresholds()
	qc.Thresholds.Premium = t.Premium.String()
	qc.Thresholds.Enterprise = t.Enterprise.String()
	return qc
}

// Policy строит quota.Policy; недостающие в YAML тарифы берутся по умолчанию
func (qc QuotaConfig) Policy() (*quota.Policy, error) {
	limits := quota.DefaultLimits()
	for name, l := range qc.Limits {
		plan, err := quota.ParsePlan(name)
		if err != nil {
			return nil, fmt.Errorf("quota.limits: %w", err)
		}
		limits[plan] = l
	}

	thresholds := quota.DefaultThresholds()
	if qc.Thresholds.Premium != "" {
		d, err := decimal.NewFromString(qc.Thresholds.Premium)
		if err != nil {
			return nil, fmt.Errorf("quota.thresholds.premium: %w", err)
		}
		thresholds.Premium = d
	}
	if qc.Thresholds.Enterprise != "" {
		d, err := decimal.NewFromString(qc.Thresholds.Enterprise)
		if err != nil {
			return nil, fmt.Errorf("quota.thresholds.enterprise: %w", err)
		}
		thresholds.Enterprise = d
	}

	return quota.NewPolicy(limits, thresholds)
}
