package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// countAttempt incrementa el contador de la clave y devuelve {intentos, ms hasta que expira}.
// La expiración se fija en el primer intento o si la clave quedó sin TTL.
var countAttempt = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

const redisAttemptTimeout = 500 * time.Millisecond

// redisAttemptLimiter comparte el contador entre réplicas con ventana fija.
type redisAttemptLimiter struct {
	logger *zap.Logger
	client redis.Scripter
	scope  string
	window time.Duration
	max    int
}

// NewRedisAttemptLimiter guarda los contadores en "attempts:<scope>:<clave>".
// Si Redis no responde el intento se permite y queda registrado en el log.
func NewRedisAttemptLimiter(logger *zap.Logger, client redis.Scripter, scope string, window time.Duration, max int) AttemptLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	window, max = limiterBounds(window, max)
	return &redisAttemptLimiter{
		logger: logger,
		client: client,
		scope:  scope,
		window: window,
		max:    max,
	}
}

func (l *redisAttemptLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	key = attemptKey(key)
	if key == "" {
		return false, l.window
	}
	ctx, cancel := context.WithTimeout(ctx, redisAttemptTimeout)
	defer cancel()

	res, err := countAttempt.Run(ctx, l.client, []string{l.redisKey(key)}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Warn("attempt limiter unavailable, allowing attempt", zap.String("scope", l.scope), zap.Error(err))
		return true, 0
	}
	if int(res[0]) <= l.max {
		return true, 0
	}
	return false, time.Duration(res[1]) * time.Millisecond
}

func (l *redisAttemptLimiter) redisKey(key string) string {
	return "attempts:" + l.scope + ":" + key
}
