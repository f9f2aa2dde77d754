package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	redisKeyPrefix = "smarthotel:lock:"

	defaultLockTTL   = 30 * time.Second
	defaultPollDelay = 50 * time.Millisecond
	unlockTimeout    = 2 * time.Second
)

// unlockScript удаляет ключ, только если он всё ещё принадлежит владельцу токена.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// renewScript продлевает ключ, только если он всё ещё принадлежит владельцу токена.
const renewScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

var errLockBusy = errors.New("lock is held")

// Redis: распределённая блокировка для нескольких экземпляров сервиса (SET NX PX + снятие по токену).
// Пока блокировка удерживается, ключ продлевается каждую треть ttl.
type Redis struct {
	client     redis.Cmdable
	ttl        time.Duration
	renewEvery time.Duration
	pollDelay  time.Duration
	newToken   func() string
	logger     *zap.Logger
}

// NewRedis создаёт блокировку поверх клиента Redis. Ключ живёт не дольше ttl после падения владельца.
func NewRedis(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	renewEvery := ttl / 3
	if renewEvery <= 0 {
		renewEvery = ttl
	}
	return &Redis{
		client:     client,
		ttl:        ttl,
		renewEvery: renewEvery,
		pollDelay:  defaultPollDelay,
		newToken:   uuid.NewString,
		logger:     logger,
	}
}

// Lock опрашивает Redis, пока ключ не освободится или контекст не будет отменён.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := r.newToken()

	err := retry.Do(ctx, retry.NewConstant(r.pollDelay), func(ctx context.Context) error {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errLockBusy)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go r.keepAlive(context.WithoutCancel(ctx), key, redisKey, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed

			unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
			defer cancel()

			if err := r.client.Eval(unlockCtx, unlockScript, []string{redisKey}, token).Err(); err != nil {
				r.logger.Warn("release lock failed", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

func (r *Redis) keepAlive(ctx context.Context, key, redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := r.renew(ctx, redisKey, token)
			if err != nil {
				r.logger.Warn("renew lock failed", zap.String("key", key), zap.Error(err))
				continue
			}
			if !held {
				r.logger.Error("lock expired while held", zap.String("key", key))
				return
			}
		}
	}
}

// renew продлевает ключ на ttl и сообщает, принадлежит ли он ещё владельцу токена.
func (r *Redis) renew(ctx context.Context, redisKey, token string) (bool, error) {
	renewCtx, cancel := context.WithTimeout(ctx, unlockTimeout)
	defer cancel()

	n, err := r.client.Eval(renewCtx, renewScript, []string{redisKey}, token, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
