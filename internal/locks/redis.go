package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docvault_backend/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит нам
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript продлевает аренду, только если ключ всё ещё наш
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker - аренда ключа через SET NX PX. Пока блокировка удерживается,
// аренда продлевается каждые ttl/3; если процесс упал, она истекает сама.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

type RedisOption func(*RedisLocker)

func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.retry = d }
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		prefix: "docvault:lock:",
		ttl:    ttl,
		retry:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRedisClient разбирает URL и проверяет соединение
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// контекст запроса мог уже истечь
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				logger.Error("Failed to release redis lock", "key", redisKey, "error", err.Error())
			}
		})
	}, nil
}

// keepAlive продлевает аренду до закрытия stop. Если ключ уже не наш,
// продление прекращается.
func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		extended, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			logger.Warn("Failed to extend redis lock", "key", redisKey, "error", err.Error())
			continue
		}
		if extended == 0 {
			logger.Warn("Redis lock lost before release", "key", redisKey)
			return
		}
	}
}
