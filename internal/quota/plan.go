package quota

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Plan - тариф подписки. Порядок тарифов задаёт порядок прав.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// planOrder - от младшего к старшему
var planOrder = []Plan{PlanFree, PlanBasic, PlanPremium, PlanEnterprise}

// Plans возвращает все тарифы по возрастанию
func Plans() []Plan {
	out := make([]Plan, len(planOrder))
	copy(out, planOrder)
	return out
}

// ParsePlan разбирает строковое значение тарифа. "none" и пустая строка
// из старых строк таблицы трактуются как free.
func ParsePlan(s string) (Plan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", string(PlanFree):
		return PlanFree, nil
	case string(PlanBasic):
		return PlanBasic, nil
	case string(PlanPremium):
		return PlanPremium, nil
	case string(PlanEnterprise):
		return PlanEnterprise, nil
	default:
		return "", fmt.Errorf("unknown plan %q", s)
	}
}

// Rank - позиция тарифа; неизвестный тариф получает -1
func (p Plan) Rank() int {
	for i, candidate := range planOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

func (p Plan) Valid() bool {
	return p.Rank() >= 0
}

// AtLeast сообщает, что p даёт не меньше прав, чем other
func (p Plan) AtLeast(other Plan) bool {
	return p.Rank() >= other.Rank()
}

func (p Plan) String() string {
	return string(p)
}

// Value реализует driver.Valuer
func (p Plan) Value() (driver.Value, error) {
	if p == "" {
		return string(PlanFree), nil
	}
	return string(p), nil
}

// Scan реализует sql.Scanner; legacy-значения нормализуются через ParsePlan
func (p *Plan) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		raw = ""
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Plan", value)
	}
	parsed, err := ParsePlan(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
