// Package locks сериализует операции над одним ключом (например, загрузки
// одного пользователя) внутри процесса или между репликами через Redis.
package locks

import (
	"context"
	"errors"
)

// ErrNotAcquired - блокировку не удалось взять за отведённое время
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock освобождает блокировку; повторный вызов безопасен
type Unlock func()

type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}
