package quota

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Unlimited - значение-сентинел "без ограничений" для байтов и количества документов
const Unlimited int64 = math.MaxInt64

const (
	MiB int64 = 1 << 20
	GiB int64 = 1 << 30
)

// Limits - потолки одного тарифа
type Limits struct {
	StorageBytes int64 `yaml:"storage_bytes" json:"storage_bytes"`
	Documents    int64 `yaml:"documents" json:"documents"`
}

// Thresholds - нижние границы суммы платежа для тарифов.
// Всё, что ниже Premium, даёт Basic.
type Thresholds struct {
	Premium    decimal.Decimal
	Enterprise decimal.Decimal
}

// Policy - чистое отображение тариф -> лимиты и сумма -> тариф.
// После создания не изменяется, безопасна для конкурентного чтения.
type Policy struct {
	limits     map[Plan]Limits
	thresholds Thresholds
}

// DefaultLimits - лимиты по умолчанию
func DefaultLimits() map[Plan]Limits {
	return map[Plan]Limits{
		PlanFree:       {StorageBytes: 100 * MiB, Documents: 10},
		PlanBasic:      {StorageBytes: 1 * GiB, Documents: 100},
		PlanPremium:    {StorageBytes: 5 * GiB, Documents: 1000},
		PlanEnterprise: {StorageBytes: 10 * GiB, Documents: Unlimited},
	}
}

// DefaultThresholds - premium от 10, enterprise от 100 единиц валюты
func DefaultThresholds() Thresholds {
	return Thresholds{
		Premium:    decimal.NewFromInt(10),
		Enterprise: decimal.NewFromInt(100),
	}
}

// DefaultPolicy возвращает политику с настройками по умолчанию
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultLimits(), DefaultThresholds())
	if err != nil {
		panic(err)
	}
	return p
}

// NewPolicy проверяет конфигурацию: лимиты заданы для всех тарифов и не убывают,
// пороги неотрицательны и упорядочены.
func NewPolicy(limits map[Plan]Limits, thresholds Thresholds) (*Policy, error) {
	copied := make(map[Plan]Limits, len(planOrder))
	var prev Limits
	for i, plan := range planOrder {
		l, ok := limits[plan]
		if !ok {
			return nil, fmt.Errorf("quota: no limits configured for plan %q", plan)
		}
		if l.StorageBytes <= 0 || l.Documents <= 0 {
			return nil, fmt.Errorf("quota: limits for plan %q must be positive", plan)
		}
		if i > 0 && (l.StorageBytes < prev.StorageBytes || l.Documents < prev.Documents) {
			return nil, fmt.Errorf("quota: limits for plan %q are lower than for %q", plan, planOrder[i-1])
		}
		copied[plan] = l
		prev = l
	}

	if thresholds.Premium.IsNegative() || thresholds.Enterprise.IsNegative() {
		return nil, fmt.Errorf("quota: thresholds must be non-negative")
	}
	if thresholds.Enterprise.LessThan(thresholds.Premium) {
		return nil, fmt.Errorf("quota: enterprise threshold %s is below premium threshold %s",
			thresholds.Enterprise, thresholds.Premium)
	}

	return &Policy{limits: copied, thresholds: thresholds}, nil
}

// Limits возвращает лимиты тарифа; неизвестный тариф получает лимиты free
func (p *Policy) Limits(plan Plan) Limits {
	if l, ok := p.limits[plan]; ok {
		return l
	}
	return p.limits[PlanFree]
}

func (p *Policy) StorageLimit(plan Plan) int64 {
	return p.Limits(plan).StorageBytes
}

func (p *Policy) DocumentLimit(plan Plan) int64 {
	return p.Limits(plan).Documents
}

func (p *Policy) Thresholds() Thresholds {
	return p.thresholds
}

// PlanForAmount - тариф, который покупает успешный платёж.
// Монотонна по сумме и определена для любой суммы.
func (p *Policy) PlanForAmount(amount decimal.Decimal) Plan {
	switch {
	case amount.GreaterThanOrEqual(p.thresholds.Enterprise):
		return PlanEnterprise
	case amount.GreaterThanOrEqual(p.thresholds.Premium):
		return PlanPremium
	default:
		return PlanBasic
	}
}

// IsUnlimited сообщает, что лимит - сентинел "без ограничений"
func IsUnlimited(limit int64) bool {
	return limit == Unlimited
}

// Fits - проверка "used + incoming <= limit" без переполнения int64
func Fits(used, incoming, limit int64) bool {
	if IsUnlimited(limit) {
		return true
	}
	if incoming < 0 || used < 0 {
		return false
	}
	if used > limit {
		return false
	}
	return incoming <= limit-used
}
