package momo

import (
	"fmt"
	"strings"
)

const (
	// MSISDNPrefix - код страны (Камерун)
	MSISDNPrefix = "237"
	MSISDNLength = 12
)

// ValidateMSISDN проверяет номер плательщика: префикс 237, 12 цифр
func ValidateMSISDN(msisdn string) error {
	if !strings.HasPrefix(msisdn, MSISDNPrefix) || len(msisdn) != MSISDNLength {
		return fmt.Errorf("phone number must start with %s and be %d digits long", MSISDNPrefix, MSISDNLength)
	}
	for _, r := range msisdn {
		if r < '0' || r > '9' {
			return fmt.Errorf("phone number must contain digits only")
		}
	}
	return nil
}

// Currencies - валюты, которые принимает коллекция
var Currencies = map[string]bool{
	"EUR": true,
	"XAF": true,
	"XOF": true,
}

// NormalizeCurrency приводит код к верхнему регистру; пустой код заменяется fallback
func NormalizeCurrency(code, fallback string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = strings.ToUpper(strings.TrimSpace(fallback))
	}
	if code == "" {
		code = "EUR"
	}
	if !Currencies[code] {
		return "", fmt.Errorf("unsupported currency %q", code)
	}
	return code, nil
}
