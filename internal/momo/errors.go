package momo

import (
	"errors"
	"fmt"
)

// Kind классифицирует сбой шлюза для вызывающей стороны
type Kind int

const (
	// KindUnavailable - сеть, таймаут или 5xx; операцию можно повторить
	KindUnavailable Kind = iota
	// KindAuth - неверные ключи подписки или API user/key
	KindAuth
	// KindRejected - шлюз отклонил запрос (4xx)
	KindRejected
	// KindProtocol - ответ не удалось разобрать
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindAuth:
		return "auth"
	case KindRejected:
		return "rejected"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error - ошибка вызова MoMo API
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("momo %s: %s (HTTP %d): %s", e.Op, e.Kind, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("momo %s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("momo %s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf возвращает класс ошибки; посторонние ошибки считаются недоступностью
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnavailable
}

func kindForStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code >= 500 || code == 429 || code == 408:
		return KindUnavailable
	default:
		return KindRejected
	}
}
