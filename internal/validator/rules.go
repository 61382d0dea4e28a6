package validator

import (
	"fmt"
	"strings"

	"docvault_backend/internal/momo"
	"docvault_backend/internal/quota"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules регистрирует доменные теги валидации
func registerCustomRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"msisdn":           validateMSISDN,
		"payment_currency": validateCurrency,
		"plan":             validatePlan,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation tag %q: %w", tag, err)
		}
	}
	return nil
}

func validateMSISDN(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // пустые значения проверяет 'required'
	}
	return momo.ValidateMSISDN(value) == nil
}

func validateCurrency(fl validator.FieldLevel) bool {
	value := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
	if value == "" {
		return true
	}
	return momo.Currencies[value]
}

func validatePlan(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := quota.ParsePlan(value)
	return err == nil
}
